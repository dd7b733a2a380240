package commands

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// ExpireSubscriptionCommand expires one subscription as of Now.
type ExpireSubscriptionCommand struct {
	SubscriptionID uuid.UUID `validate:"required"`
	Now            time.Time `validate:"required"`
}

// ExpireSubscriptionHandler handles the ExpireSubscriptionCommand.
type ExpireSubscriptionHandler struct {
	Deps
}

// NewExpireSubscriptionHandler creates a new ExpireSubscriptionHandler.
func NewExpireSubscriptionHandler(deps Deps) *ExpireSubscriptionHandler {
	return &ExpireSubscriptionHandler{Deps: deps}
}

// Handle expires a lapsed subscription. A subscription that is not yet due,
// or was already expired, extended or cancelled since it was selected, is
// skipped: the result reports Changed=false and no error.
func (h *ExpireSubscriptionHandler) Handle(ctx context.Context, cmd ExpireSubscriptionCommand) (*Result, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	return h.transition(ctx, cmd.SubscriptionID, uuid.Nil, cmd.Now, func(_ context.Context, sub *domain.Subscription, now time.Time) (domain.Change, error) {
		change, err := sub.Expire(now)
		if errors.Is(err, domain.ErrNotDue) || errors.Is(err, domain.ErrInvalidTransition) {
			return domain.Change{}, domain.ErrNoOp
		}
		return change, err
	})
}
