package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newPending(t *testing.T, price Money) *Subscription {
	t.Helper()
	sub, change, err := NewSubscription(NewSubscriptionParams{
		UserID:   uuid.New(),
		TariffID: uuid.New(),
		Scope:    Scope{CategoryID: uuid.New(), LocationID: uuid.New()},
		Price:    price,
	}, testNow)
	require.NoError(t, err)
	require.Equal(t, ActionCreated, change.Action)
	sub.ClearDomainEvents()
	return sub
}

func newActive(t *testing.T, endIn time.Duration) *Subscription {
	t.Helper()
	start := testNow.Add(-time.Hour)
	end := testNow.Add(endIn)
	return RehydrateSubscription(SubscriptionState{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		TariffID:   uuid.New(),
		CategoryID: uuid.New(),
		LocationID: uuid.New(),
		PricePaid:  1000,
		StartDate:  &start,
		EndDate:    &end,
		Status:     StatusActive,
		Enabled:    true,
		Version:    3,
		CreatedAt:  start,
		UpdatedAt:  start,
	})
}

func withStatus(t *testing.T, status Status) *Subscription {
	t.Helper()
	sub := newActive(t, 5*time.Hour)
	sub.status = status
	return sub
}

func TestNewSubscription(t *testing.T) {
	t.Run("starts pending with frozen price", func(t *testing.T) {
		sub := newPending(t, 5000)
		assert.Equal(t, StatusPending, sub.Status())
		assert.Equal(t, Money(5000), sub.PricePaid())
		assert.Nil(t, sub.StartDate())
		assert.Nil(t, sub.EndDate())
		assert.False(t, sub.IsEnabled())
	})

	t.Run("requested origin", func(t *testing.T) {
		_, change, err := NewSubscription(NewSubscriptionParams{Origin: ActionRequested, Price: 10}, testNow)
		require.NoError(t, err)
		assert.Equal(t, ActionRequested, change.Action)
	})

	t.Run("rejects negative price", func(t *testing.T) {
		_, _, err := NewSubscription(NewSubscriptionParams{Price: -1}, testNow)
		assert.ErrorIs(t, err, ErrInvalidPrice)
	})
}

func TestSubscription_Activate(t *testing.T) {
	adminID := uuid.New()

	t.Run("pending premium scenario", func(t *testing.T) {
		sub := newPending(t, 5000)

		change, err := sub.Activate(testNow, ActivateParams{
			AdminID:             adminID,
			PaymentMethod:       "card",
			TariffDurationHours: 720,
		})

		require.NoError(t, err)
		assert.Equal(t, StatusActive, sub.Status())
		assert.True(t, sub.IsEnabled())
		assert.Equal(t, Money(5000), sub.PricePaid())
		require.NotNil(t, sub.StartDate())
		require.NotNil(t, sub.EndDate())
		assert.Equal(t, sub.StartDate().Add(720*time.Hour), *sub.EndDate())
		assert.Equal(t, "card", sub.PaymentMethod())
		assert.Equal(t, adminID, *sub.ApprovedBy())
		assert.Equal(t, testNow, *sub.ApprovedAt())
		assert.Equal(t, ActionActivated, change.Action)
		assert.Equal(t, Money(5000), change.PricePaid)
		require.Len(t, sub.DomainEvents(), 1)
		assert.Equal(t, RoutingKeyActivated, sub.DomainEvents()[0].RoutingKey())
	})

	t.Run("duration override wins", func(t *testing.T) {
		sub := newPending(t, 100)
		_, err := sub.Activate(testNow, ActivateParams{DurationHours: 5, TariffDurationHours: 720})
		require.NoError(t, err)
		assert.Equal(t, testNow.Add(5*time.Hour), *sub.EndDate())
	})

	t.Run("re-activates expired", func(t *testing.T) {
		sub := withStatus(t, StatusExpired)
		_, err := sub.Activate(testNow, ActivateParams{TariffDurationHours: 24})
		require.NoError(t, err)
		assert.Equal(t, StatusActive, sub.Status())
	})

	for _, status := range []Status{StatusActive, StatusExtendPending, StatusCancelled} {
		status := status
		t.Run("rejects "+string(status), func(t *testing.T) {
			sub := withStatus(t, status)
			before := *sub.EndDate()

			_, err := sub.Activate(testNow, ActivateParams{TariffDurationHours: 24})

			assert.ErrorIs(t, err, ErrInvalidTransition)
			var te *TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, status, te.From)
			assert.Equal(t, status, sub.Status())
			assert.Equal(t, before, *sub.EndDate())
			assert.Empty(t, sub.DomainEvents())
		})
	}

	t.Run("rejects missing duration", func(t *testing.T) {
		sub := newPending(t, 100)
		_, err := sub.Activate(testNow, ActivateParams{})
		assert.ErrorIs(t, err, ErrInvalidDuration)
		assert.Equal(t, StatusPending, sub.Status())
	})

	t.Run("notes accumulate", func(t *testing.T) {
		sub := newPending(t, 100)
		sub.adminNotes = "first"
		_, err := sub.Activate(testNow, ActivateParams{TariffDurationHours: 1, Notes: "second"})
		require.NoError(t, err)
		assert.Equal(t, "first; second", sub.AdminNotes())
	})
}

func TestSubscription_ExtendByAdmin(t *testing.T) {
	t.Run("stacks on remaining time", func(t *testing.T) {
		sub := newActive(t, 10*time.Hour)

		change, err := sub.ExtendByAdmin(testNow, ExtendParams{PaymentMethod: "cash", TariffDurationHours: 48})

		require.NoError(t, err)
		assert.Equal(t, testNow.Add(58*time.Hour), *sub.EndDate())
		assert.Equal(t, ActionExtended, change.Action)
		assert.Equal(t, Money(1000), sub.PricePaid())
	})

	t.Run("anchors at now when lapsed", func(t *testing.T) {
		sub := newActive(t, -3*time.Hour)
		_, err := sub.ExtendByAdmin(testNow, ExtendParams{TariffDurationHours: 24})
		require.NoError(t, err)
		assert.Equal(t, testNow.Add(24*time.Hour), *sub.EndDate())
	})

	t.Run("pending without dates gets a start", func(t *testing.T) {
		sub := newPending(t, 100)
		_, err := sub.ExtendByAdmin(testNow, ExtendParams{TariffDurationHours: 24})
		require.NoError(t, err)
		assert.Equal(t, testNow, *sub.StartDate())
		assert.Equal(t, testNow.Add(24*time.Hour), *sub.EndDate())
		assert.True(t, sub.IsEnabled())
	})

	t.Run("clears extend pending and updates price", func(t *testing.T) {
		sub := withStatus(t, StatusExtendPending)
		price := Money(7000)
		change, err := sub.ExtendByAdmin(testNow, ExtendParams{TariffDurationHours: 24, NewPrice: &price, Notes: "paid"})
		require.NoError(t, err)
		assert.Equal(t, StatusActive, sub.Status())
		assert.Equal(t, price, sub.PricePaid())
		assert.Equal(t, price, change.PricePaid)
		assert.Contains(t, change.Notes, "paid")
	})

	t.Run("rejects cancelled", func(t *testing.T) {
		sub := withStatus(t, StatusCancelled)
		_, err := sub.ExtendByAdmin(testNow, ExtendParams{TariffDurationHours: 24})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("rejects negative price", func(t *testing.T) {
		sub := newActive(t, time.Hour)
		price := Money(-5)
		_, err := sub.ExtendByAdmin(testNow, ExtendParams{TariffDurationHours: 24, NewPrice: &price})
		assert.ErrorIs(t, err, ErrInvalidPrice)
		assert.Equal(t, Money(1000), sub.PricePaid())
	})
}

func TestSubscription_Cancel(t *testing.T) {
	t.Run("activate then cancel keeps end date", func(t *testing.T) {
		sub := newPending(t, 100)
		first, err := sub.Activate(testNow, ActivateParams{TariffDurationHours: 24})
		require.NoError(t, err)
		end := *sub.EndDate()

		second, err := sub.Cancel(testNow.Add(time.Minute), "")

		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, sub.Status())
		assert.Equal(t, end, *sub.EndDate())
		assert.Equal(t, ActionActivated, first.Action)
		assert.Equal(t, ActionCancelled, second.Action)
		assert.Equal(t, NoteCancelled, second.Notes)
	})

	t.Run("second cancel is rejected", func(t *testing.T) {
		sub := newActive(t, time.Hour)
		_, err := sub.Cancel(testNow, "user asked")
		require.NoError(t, err)
		sub.ClearDomainEvents()

		_, err = sub.Cancel(testNow, "again")

		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Empty(t, sub.DomainEvents())
	})

	t.Run("extend pending can be cancelled", func(t *testing.T) {
		sub := withStatus(t, StatusExtendPending)
		_, err := sub.Cancel(testNow, "")
		assert.NoError(t, err)
	})

	t.Run("expired cannot be cancelled", func(t *testing.T) {
		sub := withStatus(t, StatusExpired)
		_, err := sub.Cancel(testNow, "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestSubscription_Expire(t *testing.T) {
	t.Run("expires lapsed active", func(t *testing.T) {
		sub := newActive(t, -time.Minute)
		end := *sub.EndDate()

		change, err := sub.Expire(testNow)

		require.NoError(t, err)
		assert.Equal(t, StatusExpired, sub.Status())
		assert.Equal(t, end, *sub.EndDate())
		assert.Equal(t, NoteExpired, change.Notes)
	})

	t.Run("already expired is a no-op", func(t *testing.T) {
		sub := newActive(t, -time.Minute)
		_, err := sub.Expire(testNow)
		require.NoError(t, err)

		_, err = sub.Expire(testNow)
		assert.ErrorIs(t, err, ErrNoOp)
	})

	t.Run("pending is rejected", func(t *testing.T) {
		sub := newPending(t, 100)
		_, err := sub.Expire(testNow)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Empty(t, sub.DomainEvents())
	})

	t.Run("future end date is not due", func(t *testing.T) {
		sub := newActive(t, time.Hour)
		_, err := sub.Expire(testNow)
		assert.ErrorIs(t, err, ErrNotDue)
		assert.Equal(t, StatusActive, sub.Status())
	})
}

func TestSubscription_ToggleEnabled(t *testing.T) {
	t.Run("same value is a no-op", func(t *testing.T) {
		sub := newActive(t, time.Hour)
		_, err := sub.ToggleEnabled(testNow, true)
		assert.ErrorIs(t, err, ErrNoOp)
		assert.Empty(t, sub.DomainEvents())
	})

	t.Run("disable then enable", func(t *testing.T) {
		sub := newActive(t, time.Hour)
		change, err := sub.ToggleEnabled(testNow, false)
		require.NoError(t, err)
		assert.Equal(t, ActionDisabled, change.Action)
		assert.False(t, sub.IsEnabled())

		change, err = sub.ToggleEnabled(testNow, true)
		require.NoError(t, err)
		assert.Equal(t, ActionEnabled, change.Action)
	})

	t.Run("not active is rejected", func(t *testing.T) {
		sub := newPending(t, 100)
		_, err := sub.ToggleEnabled(testNow, true)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.ErrorIs(t, err, ErrNotActive)
	})
}

func TestSubscription_UpdateTariff(t *testing.T) {
	newTariff := uuid.New()

	t.Run("preserves remaining hours", func(t *testing.T) {
		sub := newActive(t, 10*time.Hour)
		start := *sub.StartDate()

		change, err := sub.UpdateTariff(testNow, TariffChangeParams{
			TariffID:            newTariff,
			TariffName:          "Premium 2d",
			PreviousTariffName:  "Premium 1d",
			TariffDurationHours: 48,
			Price:               9000,
		})

		require.NoError(t, err)
		assert.Equal(t, testNow.Add(58*time.Hour), *sub.EndDate())
		assert.Equal(t, start, *sub.StartDate())
		assert.Equal(t, newTariff, sub.TariffID())
		assert.Equal(t, Money(9000), sub.PricePaid())
		assert.Equal(t, ActionTariffChanged, change.Action)
	})

	t.Run("rounds partial hour up", func(t *testing.T) {
		sub := newActive(t, 90*time.Minute)
		_, err := sub.UpdateTariff(testNow, TariffChangeParams{TariffID: newTariff, TariffDurationHours: 24})
		require.NoError(t, err)
		assert.Equal(t, testNow.Add(26*time.Hour), *sub.EndDate())
	})

	t.Run("pending activates fresh", func(t *testing.T) {
		sub := newPending(t, 100)
		_, err := sub.UpdateTariff(testNow, TariffChangeParams{TariffID: newTariff, TariffDurationHours: 24, Price: 200})
		require.NoError(t, err)
		assert.Equal(t, StatusActive, sub.Status())
		assert.Equal(t, testNow, *sub.StartDate())
		assert.Equal(t, testNow.Add(24*time.Hour), *sub.EndDate())
		assert.True(t, sub.IsEnabled())
	})

	t.Run("expired activates fresh", func(t *testing.T) {
		sub := withStatus(t, StatusExpired)
		_, err := sub.UpdateTariff(testNow, TariffChangeParams{TariffID: newTariff, TariffDurationHours: 24})
		require.NoError(t, err)
		assert.Equal(t, testNow.Add(24*time.Hour), *sub.EndDate())
	})

	t.Run("cancelled is rejected", func(t *testing.T) {
		sub := withStatus(t, StatusCancelled)
		_, err := sub.UpdateTariff(testNow, TariffChangeParams{TariffID: newTariff, TariffDurationHours: 24})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestSubscription_RequestExtension(t *testing.T) {
	t.Run("marks extend pending without touching dates", func(t *testing.T) {
		sub := newActive(t, 5*time.Hour)
		end := *sub.EndDate()
		requested := uuid.New()

		change, err := sub.RequestExtension(testNow, requested, "Premium 7d", "please")

		require.NoError(t, err)
		assert.Equal(t, StatusExtendPending, sub.Status())
		assert.Equal(t, end, *sub.EndDate())
		assert.Equal(t, Money(1000), sub.PricePaid())
		assert.Equal(t, requested, *sub.RequestedTariffID())
		assert.Equal(t, ActionExtendRequested, change.Action)
		assert.Equal(t, Money(0), change.PricePaid)
		require.NotNil(t, change.TariffID)
		assert.Equal(t, requested, *change.TariffID)
	})

	t.Run("requires active", func(t *testing.T) {
		sub := newPending(t, 100)
		_, err := sub.RequestExtension(testNow, uuid.New(), "x", "")
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestSubscription_HasAccessAt(t *testing.T) {
	assert.True(t, newActive(t, time.Hour).HasAccessAt(testNow))
	assert.True(t, newActive(t, 0).HasAccessAt(testNow))
	assert.False(t, newActive(t, -time.Second).HasAccessAt(testNow))
	assert.True(t, withStatus(t, StatusExtendPending).HasAccessAt(testNow))
	assert.False(t, withStatus(t, StatusCancelled).HasAccessAt(testNow))
	assert.False(t, newPending(t, 1).HasAccessAt(testNow))
}

func TestSubscription_RemainingHours(t *testing.T) {
	assert.Equal(t, 10, newActive(t, 10*time.Hour).RemainingHours(testNow))
	assert.Equal(t, 1, newActive(t, time.Second).RemainingHours(testNow))
	assert.Equal(t, 0, newActive(t, -time.Hour).RemainingHours(testNow))
}
