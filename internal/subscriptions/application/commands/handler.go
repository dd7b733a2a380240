package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	sharedApplication "github.com/felixgeelhaar/estatecrm/internal/shared/application"
	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/estatecrm/pkg/observability"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrNotOwner       = errors.New("subscription belongs to another user")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateCommand(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return nil
}

// Catalog resolves tariffs and prices.
type Catalog interface {
	Tariff(ctx context.Context, id uuid.UUID) (*domain.Tariff, error)
	ResolvePrice(ctx context.Context, tariffID, locationID, categoryID uuid.UUID) (domain.Money, error)
}

// AuditLog records history entries.
type AuditLog interface {
	Append(ctx context.Context, sub *domain.Subscription, change domain.Change, now time.Time) (domain.HistoryEntry, error)
}

// Result is returned by every subscription command.
// Changed is false when the command left the subscription as it was.
type Result struct {
	Subscription queries.SubscriptionDTO
	Changed      bool
}

// Deps holds the collaborators shared by subscription command handlers.
type Deps struct {
	Repo   domain.Repository
	Audit  AuditLog
	Outbox outbox.Store
	UoW    sharedApplication.UnitOfWork
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (d Deps) now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

// load fetches a subscription and locks it for the surrounding transaction.
func (d Deps) load(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	sub, err := d.Repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("subscription %s: %w", id, domain.ErrNotFound)
	}
	return sub, nil
}

// persist saves the subscription, appends one history entry per change and
// stages its domain events in the outbox.
func (d Deps) persist(ctx context.Context, sub *domain.Subscription, actorID uuid.UUID, now time.Time, changes ...domain.Change) error {
	if err := d.Repo.Save(ctx, sub); err != nil {
		return err
	}

	for _, change := range changes {
		if _, err := d.Audit.Append(ctx, sub, change, now); err != nil {
			return err
		}
	}

	events := sub.DomainEvents()
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(observability.CorrelationIDFromContext(ctx), actorID))

	msgs, err := outbox.FromEvents(events)
	if err != nil {
		return err
	}
	if err := d.Outbox.Stage(ctx, msgs); err != nil {
		return err
	}
	sub.ClearDomainEvents()
	return nil
}

type transitionFunc func(ctx context.Context, sub *domain.Subscription, now time.Time) (domain.Change, error)

// transition runs one state machine step on a stored subscription inside a unit of work.
// ErrNoOp from the step is reported as an unchanged result. A step returning a
// Change without an action persists the subscription without a history entry.
func (d Deps) transition(ctx context.Context, id, actorID uuid.UUID, now time.Time, step transitionFunc) (*Result, error) {
	var result *Result
	err := sharedApplication.WithUnitOfWork(ctx, d.UoW, func(txCtx context.Context) error {
		sub, err := d.load(txCtx, id)
		if err != nil {
			return err
		}

		change, err := step(txCtx, sub, now)
		if errors.Is(err, domain.ErrNoOp) {
			result = &Result{Subscription: queries.NewSubscriptionDTO(sub, now)}
			return nil
		}
		if err != nil {
			return err
		}

		var changes []domain.Change
		if change.Action != "" {
			changes = append(changes, change)
		}
		if err := d.persist(txCtx, sub, actorID, now, changes...); err != nil {
			return err
		}
		result = &Result{Subscription: queries.NewSubscriptionDTO(sub, now), Changed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
