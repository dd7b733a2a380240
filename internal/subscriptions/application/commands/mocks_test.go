package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// mockSubscriptionRepo is a mock implementation of domain.Repository.
type mockSubscriptionRepo struct {
	mock.Mock
}

func (m *mockSubscriptionRepo) Save(ctx context.Context, sub *domain.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockSubscriptionRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) FindOpenByScope(ctx context.Context, userID uuid.UUID, scope domain.Scope) ([]*domain.Subscription, error) {
	args := m.Called(ctx, userID, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) FindActiveByTariffCode(ctx context.Context, userID uuid.UUID, code string) ([]*domain.Subscription, error) {
	args := m.Called(ctx, userID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) FindDueForExpiry(ctx context.Context, now time.Time, after *domain.SweepCursor, limit int) ([]*domain.Subscription, error) {
	args := m.Called(ctx, now, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) FindEndingBetween(ctx context.Context, from, to time.Time, limit int) ([]*domain.Subscription, error) {
	args := m.Called(ctx, from, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) HasAccess(ctx context.Context, userID uuid.UUID, scope *domain.Scope, now time.Time) (bool, error) {
	args := m.Called(ctx, userID, scope, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockSubscriptionRepo) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Subscription, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Subscription), args.Int(1), args.Error(2)
}

// mockOutbox records staged messages. Only Stage is exercised by command
// handlers; the embedded Store panics if anything else is called.
type mockOutbox struct {
	outbox.Store
	mock.Mock
}

func (m *mockOutbox) Stage(ctx context.Context, msgs []*outbox.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

// mockUnitOfWork is a mock implementation of UnitOfWork.
type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// mockAuditLog is a mock implementation of AuditLog.
type mockAuditLog struct {
	mock.Mock
}

func (m *mockAuditLog) Append(ctx context.Context, sub *domain.Subscription, change domain.Change, now time.Time) (domain.HistoryEntry, error) {
	args := m.Called(ctx, sub, change, now)
	return args.Get(0).(domain.HistoryEntry), args.Error(1)
}

// mockCatalog is a mock implementation of Catalog.
type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) Tariff(ctx context.Context, id uuid.UUID) (*domain.Tariff, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Tariff), args.Error(1)
}

func (m *mockCatalog) ResolvePrice(ctx context.Context, tariffID, locationID, categoryID uuid.UUID) (domain.Money, error) {
	args := m.Called(ctx, tariffID, locationID, categoryID)
	return args.Get(0).(domain.Money), args.Error(1)
}

// mockTrialRegistry is a mock implementation of domain.TrialRegistry.
type mockTrialRegistry struct {
	mock.Mock
}

func (m *mockTrialRegistry) IsTrialUsed(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockTrialRegistry) MarkTrialUsed(ctx context.Context, userID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}
