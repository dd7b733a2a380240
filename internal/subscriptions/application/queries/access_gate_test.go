package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAccessGate_HasAccess(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	userID := uuid.New()

	t.Run("administrator bypasses subscriptions", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		roles := new(mockRoleResolver)
		roles.On("IsAdmin", ctx, userID).Return(true, nil)

		ok, err := NewAccessGate(repo, roles).HasAccess(ctx, userID, now)

		require.NoError(t, err)
		assert.True(t, ok)
		repo.AssertNotCalled(t, "HasAccess", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("delegates to stored subscriptions", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		roles := new(mockRoleResolver)
		roles.On("IsAdmin", ctx, userID).Return(false, nil)
		repo.On("HasAccess", ctx, userID, (*domain.Scope)(nil), now).Return(true, nil)

		ok, err := NewAccessGate(repo, roles).HasAccess(ctx, userID, now)

		require.NoError(t, err)
		assert.True(t, ok)
		repo.AssertExpectations(t)
	})

	t.Run("no roles resolver", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		repo.On("HasAccess", ctx, userID, (*domain.Scope)(nil), now).Return(false, nil)

		ok, err := NewAccessGate(repo, nil).HasAccess(ctx, userID, now)

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("scope access passes the scope", func(t *testing.T) {
		scope := domain.Scope{CategoryID: uuid.New(), LocationID: uuid.New()}
		repo := new(mockSubscriptionRepo)
		repo.On("HasAccess", ctx, userID, &scope, now).Return(true, nil)

		ok, err := NewAccessGate(repo, nil).HasScopeAccess(ctx, userID, scope, now)

		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("repository error", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		repo.On("HasAccess", ctx, userID, (*domain.Scope)(nil), now).Return(false, errors.New("db down"))

		_, err := NewAccessGate(repo, nil).HasAccess(ctx, userID, now)

		assert.ErrorContains(t, err, "db down")
	})
}
