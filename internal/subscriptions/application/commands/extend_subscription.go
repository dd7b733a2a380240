package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// ExtendSubscriptionCommand contains the data needed to extend a subscription.
type ExtendSubscriptionCommand struct {
	SubscriptionID uuid.UUID     `validate:"required"`
	AdminID        uuid.UUID     `validate:"required"`
	PaymentMethod  string        `validate:"max=50"`
	NewPrice       *domain.Money `validate:"omitempty,gte=0"`
	Notes          string        `validate:"max=2000"`
	DurationHours  int           `validate:"gte=0"`
}

// ExtendSubscriptionHandler handles the ExtendSubscriptionCommand.
type ExtendSubscriptionHandler struct {
	Deps
	catalog Catalog
}

// NewExtendSubscriptionHandler creates a new ExtendSubscriptionHandler.
func NewExtendSubscriptionHandler(deps Deps, catalog Catalog) *ExtendSubscriptionHandler {
	return &ExtendSubscriptionHandler{Deps: deps, catalog: catalog}
}

// Handle adds time on top of whatever the subscription has left.
func (h *ExtendSubscriptionHandler) Handle(ctx context.Context, cmd ExtendSubscriptionCommand) (*Result, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	return h.transition(ctx, cmd.SubscriptionID, cmd.AdminID, h.now(), func(ctx context.Context, sub *domain.Subscription, now time.Time) (domain.Change, error) {
		tariff, err := h.catalog.Tariff(ctx, sub.TariffID())
		if err != nil {
			return domain.Change{}, err
		}
		return sub.ExtendByAdmin(now, domain.ExtendParams{
			AdminID:             cmd.AdminID,
			PaymentMethod:       cmd.PaymentMethod,
			NewPrice:            cmd.NewPrice,
			Notes:               cmd.Notes,
			DurationHours:       cmd.DurationHours,
			TariffDurationHours: tariff.DurationHours,
		})
	})
}
