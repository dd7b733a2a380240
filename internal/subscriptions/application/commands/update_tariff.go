package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// UpdateTariffCommand switches a subscription to another tariff.
type UpdateTariffCommand struct {
	SubscriptionID uuid.UUID     `validate:"required"`
	AdminID        uuid.UUID     `validate:"required"`
	TariffID       uuid.UUID     `validate:"required"`
	Price          *domain.Money `validate:"omitempty,gte=0"`
	PaymentMethod  string        `validate:"max=50"`
	Notes          string        `validate:"max=2000"`
}

// UpdateTariffHandler handles the UpdateTariffCommand.
type UpdateTariffHandler struct {
	Deps
	catalog Catalog
}

// NewUpdateTariffHandler creates a new UpdateTariffHandler.
func NewUpdateTariffHandler(deps Deps, catalog Catalog) *UpdateTariffHandler {
	return &UpdateTariffHandler{Deps: deps, catalog: catalog}
}

// Handle changes the tariff and carries any unused whole hours over.
// Without an explicit price the catalog price for the subscription's scope applies.
func (h *UpdateTariffHandler) Handle(ctx context.Context, cmd UpdateTariffCommand) (*Result, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	return h.transition(ctx, cmd.SubscriptionID, cmd.AdminID, h.now(), func(ctx context.Context, sub *domain.Subscription, now time.Time) (domain.Change, error) {
		previous, err := h.catalog.Tariff(ctx, sub.TariffID())
		if err != nil {
			return domain.Change{}, err
		}
		next, err := h.catalog.Tariff(ctx, cmd.TariffID)
		if err != nil {
			return domain.Change{}, err
		}

		var price domain.Money
		if cmd.Price != nil {
			price = *cmd.Price
		} else {
			price, err = h.catalog.ResolvePrice(ctx, next.ID, sub.Scope().LocationID, sub.Scope().CategoryID)
			if err != nil {
				return domain.Change{}, err
			}
		}

		return sub.UpdateTariff(now, domain.TariffChangeParams{
			AdminID:             cmd.AdminID,
			TariffID:            next.ID,
			TariffName:          next.Name,
			PreviousTariffName:  previous.Name,
			TariffDurationHours: next.DurationHours,
			Price:               price,
			PaymentMethod:       cmd.PaymentMethod,
			Notes:               cmd.Notes,
		})
	})
}
