package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// CancelSubscriptionCommand contains the data needed to cancel a subscription.
type CancelSubscriptionCommand struct {
	SubscriptionID uuid.UUID `validate:"required"`
	ActorID        uuid.UUID `validate:"required"`
	Reason         string    `validate:"max=2000"`
}

// CancelSubscriptionHandler handles the CancelSubscriptionCommand.
type CancelSubscriptionHandler struct {
	Deps
}

// NewCancelSubscriptionHandler creates a new CancelSubscriptionHandler.
func NewCancelSubscriptionHandler(deps Deps) *CancelSubscriptionHandler {
	return &CancelSubscriptionHandler{Deps: deps}
}

// Handle cancels a subscription. Cancellation is final.
func (h *CancelSubscriptionHandler) Handle(ctx context.Context, cmd CancelSubscriptionCommand) (*Result, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	return h.transition(ctx, cmd.SubscriptionID, cmd.ActorID, h.now(), func(_ context.Context, sub *domain.Subscription, now time.Time) (domain.Change, error) {
		return sub.Cancel(now, cmd.Reason)
	})
}
