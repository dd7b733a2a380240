package commands

import (
	"context"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	sharedApplication "github.com/felixgeelhaar/estatecrm/internal/shared/application"
	"github.com/google/uuid"
)

// CreateSubscriptionCommand contains the data an administrator supplies to create a subscription.
type CreateSubscriptionCommand struct {
	AdminID       uuid.UUID `validate:"required"`
	UserID        uuid.UUID `validate:"required"`
	TariffID      uuid.UUID `validate:"required"`
	CategoryID    uuid.UUID `validate:"required"`
	LocationID    uuid.UUID `validate:"required"`
	AutoActivate  bool
	PaymentMethod string        `validate:"max=50"`
	Notes         string        `validate:"max=2000"`
	DurationHours int           `validate:"gte=0"`
	Price         *domain.Money `validate:"omitempty,gte=0"`
}

// CreateSubscriptionHandler handles the CreateSubscriptionCommand.
type CreateSubscriptionHandler struct {
	Deps
	catalog Catalog
}

// NewCreateSubscriptionHandler creates a new CreateSubscriptionHandler.
func NewCreateSubscriptionHandler(deps Deps, catalog Catalog) *CreateSubscriptionHandler {
	return &CreateSubscriptionHandler{Deps: deps, catalog: catalog}
}

// Handle creates a pending subscription, activating it at once when requested.
// The price is the explicit one or the catalog price for the scope.
func (h *CreateSubscriptionHandler) Handle(ctx context.Context, cmd CreateSubscriptionCommand) (*Result, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	var result *Result
	err := sharedApplication.WithUnitOfWork(ctx, h.UoW, func(txCtx context.Context) error {
		tariff, err := h.catalog.Tariff(txCtx, cmd.TariffID)
		if err != nil {
			return err
		}

		price, err := h.price(txCtx, cmd)
		if err != nil {
			return err
		}

		now := h.now()
		sub, created, err := domain.NewSubscription(domain.NewSubscriptionParams{
			UserID:   cmd.UserID,
			TariffID: cmd.TariffID,
			Scope:    domain.Scope{CategoryID: cmd.CategoryID, LocationID: cmd.LocationID},
			Price:    price,
			Origin:   domain.ActionCreated,
			Notes:    cmd.Notes,
		}, now)
		if err != nil {
			return err
		}

		changes := []domain.Change{created}
		if cmd.AutoActivate {
			activated, err := sub.Activate(now, domain.ActivateParams{
				AdminID:             cmd.AdminID,
				PaymentMethod:       cmd.PaymentMethod,
				DurationHours:       cmd.DurationHours,
				TariffDurationHours: tariff.DurationHours,
			})
			if err != nil {
				return err
			}
			changes = append(changes, activated)
		}

		if err := h.persist(txCtx, sub, cmd.AdminID, now, changes...); err != nil {
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

func (h *CreateSubscriptionHandler) price(ctx context.Context, cmd CreateSubscriptionCommand) (domain.Money, error) {
	if cmd.Price != nil {
		return *cmd.Price, nil
	}
	return h.catalog.ResolvePrice(ctx, cmd.TariffID, cmd.LocationID, cmd.CategoryID)
}
