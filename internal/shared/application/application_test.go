package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type txKey struct{}

type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newUoW() (*mockUnitOfWork, context.Context, context.Context) {
	ctx := context.Background()
	txCtx := context.WithValue(ctx, txKey{}, "tx")
	return new(mockUnitOfWork), ctx, txCtx
}

func TestWithUnitOfWork_Commits(t *testing.T) {
	uow, ctx, txCtx := newUoW()
	uow.On("Begin", ctx).Return(txCtx, nil)
	uow.On("Commit", txCtx).Return(nil)

	err := WithUnitOfWork(ctx, uow, func(got context.Context) error {
		assert.Equal(t, "tx", got.Value(txKey{}))
		return nil
	})

	require.NoError(t, err)
	uow.AssertExpectations(t)
	uow.AssertNotCalled(t, "Rollback", mock.Anything)
}

func TestWithUnitOfWork_RollsBackOnError(t *testing.T) {
	errStep := errors.New("scope already subscribed")

	t.Run("rollback succeeds", func(t *testing.T) {
		uow, ctx, txCtx := newUoW()
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)

		err := WithUnitOfWork(ctx, uow, func(context.Context) error { return errStep })

		assert.Equal(t, errStep, err)
		uow.AssertNotCalled(t, "Commit", mock.Anything)
	})

	t.Run("rollback fails too", func(t *testing.T) {
		uow, ctx, txCtx := newUoW()
		errRollback := errors.New("connection reset")
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(errRollback)

		err := WithUnitOfWork(ctx, uow, func(context.Context) error { return errStep })

		require.Error(t, err)
		assert.ErrorIs(t, err, errStep)
		assert.ErrorIs(t, err, errRollback)
	})
}

func TestWithUnitOfWork_BeginAndCommitFailures(t *testing.T) {
	errDB := errors.New("database is locked")

	t.Run("begin", func(t *testing.T) {
		uow, ctx, _ := newUoW()
		uow.On("Begin", ctx).Return(ctx, errDB)

		called := false
		err := WithUnitOfWork(ctx, uow, func(context.Context) error {
			called = true
			return nil
		})

		assert.ErrorIs(t, err, errDB)
		assert.Contains(t, err.Error(), "begin unit of work")
		assert.False(t, called)
	})

	t.Run("commit", func(t *testing.T) {
		uow, ctx, txCtx := newUoW()
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(errDB)

		err := WithUnitOfWork(ctx, uow, func(context.Context) error { return nil })

		assert.ErrorIs(t, err, errDB)
		assert.Contains(t, err.Error(), "commit unit of work")
	})
}

func TestWithUnitOfWork_RollsBackOnPanic(t *testing.T) {
	uow, ctx, txCtx := newUoW()
	uow.On("Begin", ctx).Return(txCtx, nil)
	uow.On("Rollback", txCtx).Return(nil)

	assert.PanicsWithValue(t, "boom", func() {
		_ = WithUnitOfWork(ctx, uow, func(context.Context) error { panic("boom") })
	})
	uow.AssertCalled(t, "Rollback", txCtx)
}

type stampedEvent struct {
	domain.BaseEvent
}

type plainEvent struct{}

func (plainEvent) EventID() uuid.UUID             { return uuid.Nil }
func (plainEvent) AggregateID() uuid.UUID         { return uuid.Nil }
func (plainEvent) AggregateType() string          { return "Plain" }
func (plainEvent) RoutingKey() string             { return "plain" }
func (plainEvent) OccurredAt() time.Time          { return time.Time{} }
func (plainEvent) Metadata() domain.EventMetadata { return domain.EventMetadata{} }

func TestNewEventMetadata(t *testing.T) {
	actor := uuid.New()
	corr := uuid.New()

	md := NewEventMetadata(corr.String(), actor)
	assert.Equal(t, corr, md.CorrelationID)
	assert.Equal(t, actor, md.UserID)
	assert.NotEqual(t, uuid.Nil, md.CausationID)

	generated := NewEventMetadata("", actor)
	assert.NotEqual(t, uuid.Nil, generated.CorrelationID)
	assert.NotEqual(t, NewEventMetadata("", actor).CausationID, generated.CausationID)
}

func TestApplyEventMetadata(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	first := &stampedEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Subscription", "subscriptions.subscription.created", now)}
	second := &stampedEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Subscription", "subscriptions.subscription.activated", now)}
	md := NewEventMetadata("", uuid.New())

	assert.NotPanics(t, func() {
		ApplyEventMetadata([]domain.DomainEvent{first, plainEvent{}, second}, md)
		ApplyEventMetadata(nil, md)
	})
	assert.Equal(t, md, first.Metadata())
	assert.Equal(t, md, second.Metadata())
}
