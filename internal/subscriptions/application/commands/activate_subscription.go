package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// ActivateSubscriptionCommand contains the data needed to activate a subscription.
type ActivateSubscriptionCommand struct {
	SubscriptionID uuid.UUID `validate:"required"`
	AdminID        uuid.UUID `validate:"required"`
	PaymentMethod  string    `validate:"max=50"`
	Notes          string    `validate:"max=2000"`
	DurationHours  int       `validate:"gte=0"`
}

// ActivateSubscriptionHandler handles the ActivateSubscriptionCommand.
type ActivateSubscriptionHandler struct {
	Deps
	catalog Catalog
	trials  domain.TrialRegistry
}

// NewActivateSubscriptionHandler creates a new ActivateSubscriptionHandler.
func NewActivateSubscriptionHandler(deps Deps, catalog Catalog, trials domain.TrialRegistry) *ActivateSubscriptionHandler {
	return &ActivateSubscriptionHandler{Deps: deps, catalog: catalog, trials: trials}
}

// Handle activates a pending or expired subscription.
// Activating a premium tariff consumes the user's trial and cancels their running demos.
func (h *ActivateSubscriptionHandler) Handle(ctx context.Context, cmd ActivateSubscriptionCommand) (*Result, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	return h.transition(ctx, cmd.SubscriptionID, cmd.AdminID, h.now(), func(ctx context.Context, sub *domain.Subscription, now time.Time) (domain.Change, error) {
		tariff, err := h.catalog.Tariff(ctx, sub.TariffID())
		if err != nil {
			return domain.Change{}, err
		}

		change, err := sub.Activate(now, domain.ActivateParams{
			AdminID:             cmd.AdminID,
			PaymentMethod:       cmd.PaymentMethod,
			Notes:               cmd.Notes,
			DurationHours:       cmd.DurationHours,
			TariffDurationHours: tariff.DurationHours,
		})
		if err != nil {
			return domain.Change{}, err
		}

		if tariff.IsPremium() {
			if err := h.trials.MarkTrialUsed(ctx, sub.UserID(), now); err != nil {
				return domain.Change{}, err
			}
			if _, err := cancelDemos(ctx, h.Deps, sub.UserID(), sub.ID(), cmd.AdminID, now, domain.NoteDemoReplaced); err != nil {
				return domain.Change{}, err
			}
		}
		return change, nil
	})
}
