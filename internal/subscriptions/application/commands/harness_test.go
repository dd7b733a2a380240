package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var fixedNow = time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)

type testKey string

type harness struct {
	repo    *mockSubscriptionRepo
	outbox  *mockOutbox
	uow     *mockUnitOfWork
	audit   *mockAuditLog
	catalog *mockCatalog
	trials  *mockTrialRegistry
	deps    Deps
	ctx     context.Context
	txCtx   context.Context
}

func newHarness() *harness {
	h := &harness{
		repo:    new(mockSubscriptionRepo),
		outbox:  new(mockOutbox),
		uow:     new(mockUnitOfWork),
		audit:   new(mockAuditLog),
		catalog: new(mockCatalog),
		trials:  new(mockTrialRegistry),
		ctx:     context.Background(),
	}
	h.txCtx = context.WithValue(h.ctx, testKey("tx"), "transaction")
	h.deps = Deps{
		Repo:   h.repo,
		Audit:  h.audit,
		Outbox: h.outbox,
		UoW:    h.uow,
		Clock:  func() time.Time { return fixedNow },
	}
	return h
}

func (h *harness) expectCommit() {
	h.uow.On("Begin", h.ctx).Return(h.txCtx, nil)
	h.uow.On("Commit", h.txCtx).Return(nil)
}

func (h *harness) expectRollback() {
	h.uow.On("Begin", h.ctx).Return(h.txCtx, nil)
	h.uow.On("Rollback", h.txCtx).Return(nil)
}

// expectPersist expects one save, the given audit actions and one outbox batch for sub.
func (h *harness) expectPersist(sub any, actions ...domain.Action) {
	h.repo.On("Save", h.txCtx, sub).Return(nil).Once()
	for _, action := range actions {
		action := action
		h.audit.On("Append", h.txCtx, sub, mock.MatchedBy(func(c domain.Change) bool {
			return c.Action == action
		}), fixedNow).Return(domain.HistoryEntry{}, nil).Once()
	}
	h.outbox.On("Stage", h.txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil).Once()
}

func (h *harness) assertExpectations(t mock.TestingT) {
	h.repo.AssertExpectations(t)
	h.outbox.AssertExpectations(t)
	h.uow.AssertExpectations(t)
	h.audit.AssertExpectations(t)
	h.catalog.AssertExpectations(t)
	h.trials.AssertExpectations(t)
}

func tariffFixture(code string, hours int) *domain.Tariff {
	return &domain.Tariff{
		ID:            uuid.New(),
		Name:          "Tariff " + code,
		Code:          code,
		DurationHours: hours,
		BasePrice:     5000,
		IsActive:      true,
	}
}

func subscriptionFixture(userID, tariffID uuid.UUID, status domain.Status, endIn time.Duration) *domain.Subscription {
	created := fixedNow.Add(-48 * time.Hour)
	state := domain.SubscriptionState{
		ID:         uuid.New(),
		UserID:     userID,
		TariffID:   tariffID,
		CategoryID: uuid.New(),
		LocationID: uuid.New(),
		PricePaid:  5000,
		Status:     status,
		Version:    1,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	if status != domain.StatusPending {
		end := fixedNow.Add(endIn)
		state.StartDate = &created
		state.EndDate = &end
		state.Enabled = true
	}
	return domain.RehydrateSubscription(state)
}
