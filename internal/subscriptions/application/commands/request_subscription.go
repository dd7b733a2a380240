package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	sharedApplication "github.com/felixgeelhaar/estatecrm/internal/shared/application"
	"github.com/google/uuid"
)

const trialPaymentMethod = "trial"

// RequestSubscriptionCommand contains the data a user supplies to request a subscription.
type RequestSubscriptionCommand struct {
	UserID     uuid.UUID `validate:"required"`
	TariffID   uuid.UUID `validate:"required"`
	CategoryID uuid.UUID `validate:"required"`
	LocationID uuid.UUID `validate:"required"`
	Notes      string    `validate:"max=2000"`
}

// RequestSubscriptionHandler handles the RequestSubscriptionCommand.
type RequestSubscriptionHandler struct {
	Deps
	catalog Catalog
	trials  domain.TrialRegistry
}

// NewRequestSubscriptionHandler creates a new RequestSubscriptionHandler.
func NewRequestSubscriptionHandler(deps Deps, catalog Catalog, trials domain.TrialRegistry) *RequestSubscriptionHandler {
	return &RequestSubscriptionHandler{Deps: deps, catalog: catalog, trials: trials}
}

// Handle creates a subscription on behalf of a user.
// The demo tariff is activated at once and consumes the trial. Any other tariff
// stays pending until an administrator activates it, and replaces the user's
// running demo subscriptions.
func (h *RequestSubscriptionHandler) Handle(ctx context.Context, cmd RequestSubscriptionCommand) (*Result, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	var result *Result
	err := sharedApplication.WithUnitOfWork(ctx, h.UoW, func(txCtx context.Context) error {
		now := h.now()
		scope := domain.Scope{CategoryID: cmd.CategoryID, LocationID: cmd.LocationID}

		tariff, err := h.catalog.Tariff(txCtx, cmd.TariffID)
		if err != nil {
			return err
		}

		if tariff.IsDemo() {
			used, err := h.trials.IsTrialUsed(txCtx, cmd.UserID)
			if err != nil {
				return err
			}
			if used {
				return domain.ErrTrialAlreadyUsed
			}
		}

		replaced := make(map[uuid.UUID]bool)
		if !tariff.IsDemo() {
			replaced, err = cancelDemos(txCtx, h.Deps, cmd.UserID, uuid.Nil, cmd.UserID, now, domain.NoteDemoUpgraded)
			if err != nil {
				return err
			}
		}

		open, err := h.Repo.FindOpenByScope(txCtx, cmd.UserID, scope)
		if err != nil {
			return err
		}
		for _, existing := range open {
			if !replaced[existing.ID()] {
				return domain.ErrScopeAlreadySubscribed
			}
		}

		price, err := h.catalog.ResolvePrice(txCtx, cmd.TariffID, cmd.LocationID, cmd.CategoryID)
		if err != nil {
			return err
		}

		origin := domain.ActionRequested
		if tariff.IsDemo() {
			origin = domain.ActionCreated
		}
		sub, change, err := domain.NewSubscription(domain.NewSubscriptionParams{
			UserID:   cmd.UserID,
			TariffID: cmd.TariffID,
			Scope:    scope,
			Price:    price,
			Origin:   origin,
			Notes:    cmd.Notes,
		}, now)
		if err != nil {
			return err
		}

		if tariff.IsDemo() {
			if _, err := sub.Activate(now, domain.ActivateParams{
				PaymentMethod:       trialPaymentMethod,
				TariffDurationHours: tariff.DurationHours,
			}); err != nil {
				return err
			}
			change.Notes = domain.NoteDemoActivated
		}

		if tariff.IsDemo() || tariff.IsPremium() {
			if err := h.trials.MarkTrialUsed(txCtx, cmd.UserID, now); err != nil {
				return err
			}
		}

		if err := h.persist(txCtx, sub, cmd.UserID, now, change); err != nil {
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

// cancelDemos cancels the user's active demo subscriptions except keep,
// writing one cancelled entry for each, and returns the cancelled ids.
func cancelDemos(ctx context.Context, d Deps, userID, keep, actorID uuid.UUID, now time.Time, note string) (map[uuid.UUID]bool, error) {
	demos, err := d.Repo.FindActiveByTariffCode(ctx, userID, domain.TariffCodeDemo)
	if err != nil {
		return nil, err
	}
	cancelled := make(map[uuid.UUID]bool, len(demos))
	for _, demo := range demos {
		if demo.ID() == keep {
			continue
		}
		change, err := demo.Cancel(now, note)
		if err != nil {
			return nil, err
		}
		if err := d.persist(ctx, demo, actorID, now, change); err != nil {
			return nil, err
		}
		cancelled[demo.ID()] = true
	}
	return cancelled, nil
}
