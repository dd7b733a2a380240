package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// RequestExtensionCommand is a user's request for more time on an active subscription.
type RequestExtensionCommand struct {
	SubscriptionID uuid.UUID `validate:"required"`
	UserID         uuid.UUID `validate:"required"`
	TariffID       uuid.UUID `validate:"required"`
	Notes          string    `validate:"max=2000"`
}

// RequestExtensionHandler handles the RequestExtensionCommand.
type RequestExtensionHandler struct {
	Deps
	catalog Catalog
}

// NewRequestExtensionHandler creates a new RequestExtensionHandler.
func NewRequestExtensionHandler(deps Deps, catalog Catalog) *RequestExtensionHandler {
	return &RequestExtensionHandler{Deps: deps, catalog: catalog}
}

// Handle marks the subscription as awaiting an extension. Access continues
// until an administrator extends it or it lapses.
func (h *RequestExtensionHandler) Handle(ctx context.Context, cmd RequestExtensionCommand) (*Result, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	return h.transition(ctx, cmd.SubscriptionID, cmd.UserID, h.now(), func(ctx context.Context, sub *domain.Subscription, now time.Time) (domain.Change, error) {
		if sub.UserID() != cmd.UserID {
			return domain.Change{}, ErrNotOwner
		}
		tariff, err := h.catalog.Tariff(ctx, cmd.TariffID)
		if err != nil {
			return domain.Change{}, err
		}
		return sub.RequestExtension(now, tariff.ID, tariff.Name, cmd.Notes)
	})
}
