package queries

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var listNow = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

func activeSubscription(userID uuid.UUID, endIn time.Duration) *domain.Subscription {
	start := listNow.Add(-24 * time.Hour)
	end := listNow.Add(endIn)
	return domain.RehydrateSubscription(domain.SubscriptionState{
		ID:        uuid.New(),
		UserID:    userID,
		TariffID:  uuid.New(),
		PricePaid: 5000,
		StartDate: &start,
		EndDate:   &end,
		Status:    domain.StatusActive,
		Enabled:   true,
		Version:   2,
		CreatedAt: start,
		UpdatedAt: start,
	})
}

func TestTimeLeft(t *testing.T) {
	userID := uuid.New()
	assert.Equal(t, "3 d", TimeLeft(activeSubscription(userID, 80*time.Hour), listNow))
	assert.Equal(t, "5 h", TimeLeft(activeSubscription(userID, 5*time.Hour+10*time.Minute), listNow))
	assert.Equal(t, "42 min", TimeLeft(activeSubscription(userID, 42*time.Minute), listNow))
	assert.Equal(t, "0 d", TimeLeft(activeSubscription(userID, -time.Minute), listNow))
}

func TestListSubscriptionsHandler_Handle(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("maps sort, filters and meta", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		sub := activeSubscription(userID, 30*time.Hour)

		repo.On("List", ctx, mock.MatchedBy(func(f domain.ListFilter) bool {
			return f.Sort.Field == "end_date" &&
				f.Sort.Direction == domain.SortAsc &&
				*f.UserID == userID &&
				f.EndFrom != nil && f.EndFrom.Equal(listNow.AddDate(0, 0, 1)) &&
				f.EndTo == nil &&
				f.Page == domain.Page{Number: 1, PerPage: 10}
		})).Return([]*domain.Subscription{sub}, 1, nil)

		page, err := NewListSubscriptionsHandler(repo).Handle(ctx, ListSubscriptionsQuery{
			UserID:      &userID,
			Statuses:    []domain.Status{domain.StatusActive},
			DaysLeftMin: 1,
			Sort:        domain.Sort{Field: "days_left", Direction: domain.SortAsc},
			Page:        domain.Page{Number: 1, PerPage: 10},
			Now:         listNow,
		})

		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, sub.ID(), page.Items[0].ID)
		assert.Equal(t, "1 d", page.Items[0].TimeLeft)
		assert.True(t, page.Items[0].HasAccess)
		assert.Equal(t, domain.PageMeta{Total: 1, PerPage: 10, CurrentPage: 1, TotalPages: 1, From: 1, To: 1}, page.Meta)
		repo.AssertExpectations(t)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		_, err := NewListSubscriptionsHandler(new(mockSubscriptionRepo)).Handle(ctx, ListSubscriptionsQuery{
			Statuses: []domain.Status{"paused"},
		})
		assert.Error(t, err)
	})

	t.Run("rejects unknown sort", func(t *testing.T) {
		_, err := NewListSubscriptionsHandler(new(mockSubscriptionRepo)).Handle(ctx, ListSubscriptionsQuery{
			Sort: domain.Sort{Field: "password"},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidSort)
	})
}

func TestGetSubscriptionHandler_Handle(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		sub := activeSubscription(uuid.New(), time.Hour)
		repo.On("FindByID", ctx, sub.ID()).Return(sub, nil)

		dto, err := NewGetSubscriptionHandler(repo).Handle(ctx, sub.ID(), listNow)

		require.NoError(t, err)
		assert.Equal(t, "active", dto.Status)
		assert.Equal(t, int64(5000), dto.PricePaid)
		assert.Equal(t, 2, dto.Version)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		id := uuid.New()
		repo.On("FindByID", ctx, id).Return(nil, nil)

		_, err := NewGetSubscriptionHandler(repo).Handle(ctx, id, listNow)

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
