package commands

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestExtendSubscriptionHandler_Handle(t *testing.T) {
	adminID := uuid.New()
	h := newHarness()
	tariff := tariffFixture("premium_2", 48)
	sub := subscriptionFixture(uuid.New(), tariff.ID, domain.StatusExtendPending, 10*time.Hour)
	price := domain.Money(8000)
	handler := NewExtendSubscriptionHandler(h.deps, h.catalog)

	h.expectCommit()
	h.repo.On("FindByIDForUpdate", h.txCtx, sub.ID()).Return(sub, nil)
	h.catalog.On("Tariff", h.txCtx, tariff.ID).Return(tariff, nil)
	h.expectPersist(sub, domain.ActionExtended)

	result, err := handler.Handle(h.ctx, ExtendSubscriptionCommand{
		SubscriptionID: sub.ID(),
		AdminID:        adminID,
		PaymentMethod:  "cash",
		NewPrice:       &price,
	})

	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusActive), result.Subscription.Status)
	assert.Equal(t, fixedNow.Add(58*time.Hour), *result.Subscription.EndDate)
	assert.Equal(t, int64(8000), result.Subscription.PricePaid)
	h.assertExpectations(t)
}

func TestCancelSubscriptionHandler_Handle(t *testing.T) {
	actorID := uuid.New()

	t.Run("cancels and keeps end date", func(t *testing.T) {
		h := newHarness()
		sub := subscriptionFixture(uuid.New(), uuid.New(), domain.StatusActive, 5*time.Hour)
		end := *sub.EndDate()
		handler := NewCancelSubscriptionHandler(h.deps)

		h.expectCommit()
		h.repo.On("FindByIDForUpdate", h.txCtx, sub.ID()).Return(sub, nil)
		h.expectPersist(sub, domain.ActionCancelled)

		result, err := handler.Handle(h.ctx, CancelSubscriptionCommand{SubscriptionID: sub.ID(), ActorID: actorID})

		require.NoError(t, err)
		assert.Equal(t, string(domain.StatusCancelled), result.Subscription.Status)
		assert.Equal(t, end, *result.Subscription.EndDate)
		assert.False(t, result.Subscription.HasAccess)
		h.assertExpectations(t)
	})

	t.Run("cancelled subscription cannot be cancelled again", func(t *testing.T) {
		h := newHarness()
		sub := subscriptionFixture(uuid.New(), uuid.New(), domain.StatusCancelled, 5*time.Hour)
		handler := NewCancelSubscriptionHandler(h.deps)

		h.expectRollback()
		h.repo.On("FindByIDForUpdate", h.txCtx, sub.ID()).Return(sub, nil)

		_, err := handler.Handle(h.ctx, CancelSubscriptionCommand{SubscriptionID: sub.ID(), ActorID: actorID})

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		h.assertExpectations(t)
	})
}

func TestExpireSubscriptionHandler_Handle(t *testing.T) {
	t.Run("expires lapsed subscription", func(t *testing.T) {
		h := newHarness()
		sub := subscriptionFixture(uuid.New(), uuid.New(), domain.StatusActive, -time.Minute)
		handler := NewExpireSubscriptionHandler(h.deps)

		h.expectCommit()
		h.repo.On("FindByIDForUpdate", h.txCtx, sub.ID()).Return(sub, nil)
		h.expectPersist(sub, domain.ActionExpired)

		result, err := handler.Handle(h.ctx, ExpireSubscriptionCommand{SubscriptionID: sub.ID(), Now: fixedNow})

		require.NoError(t, err)
		assert.True(t, result.Changed)
		assert.Equal(t, domain.StatusExpired, sub.Status())
		h.assertExpectations(t)
	})

	for name, sub := range map[string]*domain.Subscription{
		"not yet due":         subscriptionFixture(uuid.New(), uuid.New(), domain.StatusActive, time.Minute),
		"extended meanwhile":  subscriptionFixture(uuid.New(), uuid.New(), domain.StatusActive, time.Hour),
		"cancelled meanwhile": subscriptionFixture(uuid.New(), uuid.New(), domain.StatusCancelled, -time.Hour),
		"already expired":     subscriptionFixture(uuid.New(), uuid.New(), domain.StatusExpired, -time.Hour),
	} {
		sub := sub
		t.Run(name+" is skipped", func(t *testing.T) {
			h := newHarness()
			handler := NewExpireSubscriptionHandler(h.deps)

			h.expectCommit()
			h.repo.On("FindByIDForUpdate", h.txCtx, sub.ID()).Return(sub, nil)

			result, err := handler.Handle(h.ctx, ExpireSubscriptionCommand{SubscriptionID: sub.ID(), Now: fixedNow})

			require.NoError(t, err)
			assert.False(t, result.Changed)
			h.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
			h.assertExpectations(t)
		})
	}
}

func TestToggleEnabledHandler_Handle(t *testing.T) {
	userID := uuid.New()

	t.Run("pauses", func(t *testing.T) {
		h := newHarness()
		sub := subscriptionFixture(userID, uuid.New(), domain.StatusActive, time.Hour)
		handler := NewToggleEnabledHandler(h.deps)

		h.expectCommit()
		h.repo.On("FindByIDForUpdate", h.txCtx, sub.ID()).Return(sub, nil)
		h.expectPersist(sub, domain.ActionDisabled)

		result, err := handler.Handle(h.ctx, ToggleEnabledCommand{SubscriptionID: sub.ID(), UserID: userID, Enabled: false})

		require.NoError(t, err)
		assert.True(t, result.Changed)
		assert.False(t, result.Subscription.Enabled)
		h.assertExpectations(t)
	})

	t.Run("same value writes nothing", func(t *testing.T) {
		h := newHarness()
		sub := subscriptionFixture(userID, uuid.New(), domain.StatusActive, time.Hour)
		handler := NewToggleEnabledHandler(h.deps)

		h.expectCommit()
		h.repo.On("FindByIDForUpdate", h.txCtx, sub.ID()).Return(sub, nil)

		result, err := handler.Handle(h.ctx, ToggleEnabledCommand{SubscriptionID: sub.ID(), UserID: userID, Enabled: true})

		require.NoError(t, err)
		assert.False(t, result.Changed)
		h.audit.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		h.assertExpectations(t)
	})

	t.Run("other user is rejected", func(t *testing.T) {
		h := newHarness()
		sub := subscriptionFixture(userID, uuid.New(), domain.StatusActive, time.Hour)
		handler := NewToggleEnabledHandler(h.deps)

		h.expectRollback()
		h.repo.On("FindByIDForUpdate", h.txCtx, sub.ID()).Return(sub, nil)

		_, err := handler.Handle(h.ctx, ToggleEnabledCommand{SubscriptionID: sub.ID(), UserID: uuid.New()})

		assert.ErrorIs(t, err, ErrNotOwner)
		h.assertExpectations(t)
	})
}

func TestUpdateTariffHandler_Handle(t *testing.T) {
	adminID := uuid.New()
	h := newHarness()
	current := tariffFixture("premium_1", 24)
	next := tariffFixture("premium_2", 48)
	sub := subscriptionFixture(uuid.New(), current.ID, domain.StatusActive, 10*time.Hour)
	handler := NewUpdateTariffHandler(h.deps, h.catalog)

	h.expectCommit()
	h.repo.On("FindByIDForUpdate", h.txCtx, sub.ID()).Return(sub, nil)
	h.catalog.On("Tariff", h.txCtx, current.ID).Return(current, nil)
	h.catalog.On("Tariff", h.txCtx, next.ID).Return(next, nil)
	h.catalog.On("ResolvePrice", h.txCtx, next.ID, sub.Scope().LocationID, sub.Scope().CategoryID).Return(domain.Money(9900), nil)
	h.repo.On("Save", h.txCtx, sub).Return(nil)
	h.audit.On("Append", h.txCtx, sub, mock.MatchedBy(func(c domain.Change) bool {
		return c.Action == domain.ActionTariffChanged &&
			c.Notes == "Tariff changed from Tariff premium_1 to Tariff premium_2, 48h granted plus 10h carried over"
	}), fixedNow).Return(domain.HistoryEntry{}, nil)
	h.outbox.On("Stage", h.txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

	result, err := handler.Handle(h.ctx, UpdateTariffCommand{SubscriptionID: sub.ID(), AdminID: adminID, TariffID: next.ID})

	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(58*time.Hour), *result.Subscription.EndDate)
	assert.Equal(t, next.ID, result.Subscription.TariffID)
	assert.Equal(t, int64(9900), result.Subscription.PricePaid)
	h.assertExpectations(t)
}

func TestRequestExtensionHandler_Handle(t *testing.T) {
	userID := uuid.New()
	h := newHarness()
	tariff := tariffFixture("premium_7", 168)
	sub := subscriptionFixture(userID, uuid.New(), domain.StatusActive, 20*time.Hour)
	end := *sub.EndDate()
	handler := NewRequestExtensionHandler(h.deps, h.catalog)

	h.expectCommit()
	h.repo.On("FindByIDForUpdate", h.txCtx, sub.ID()).Return(sub, nil)
	h.catalog.On("Tariff", h.txCtx, tariff.ID).Return(tariff, nil)
	h.expectPersist(sub, domain.ActionExtendRequested)

	result, err := handler.Handle(h.ctx, RequestExtensionCommand{SubscriptionID: sub.ID(), UserID: userID, TariffID: tariff.ID})

	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusExtendPending), result.Subscription.Status)
	assert.Equal(t, end, *result.Subscription.EndDate)
	assert.True(t, result.Subscription.HasAccess)
	assert.Equal(t, tariff.ID, *result.Subscription.RequestedTariffID)
	h.assertExpectations(t)
}
