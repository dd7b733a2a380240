package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// ToggleEnabledCommand pauses or resumes a subscription for its owner.
type ToggleEnabledCommand struct {
	SubscriptionID uuid.UUID `validate:"required"`
	UserID         uuid.UUID `validate:"required"`
	Enabled        bool
}

// ToggleEnabledHandler handles the ToggleEnabledCommand.
type ToggleEnabledHandler struct {
	Deps
}

// NewToggleEnabledHandler creates a new ToggleEnabledHandler.
func NewToggleEnabledHandler(deps Deps) *ToggleEnabledHandler {
	return &ToggleEnabledHandler{Deps: deps}
}

// Handle sets the enabled flag. Setting the current value changes nothing.
func (h *ToggleEnabledHandler) Handle(ctx context.Context, cmd ToggleEnabledCommand) (*Result, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	return h.transition(ctx, cmd.SubscriptionID, cmd.UserID, h.now(), func(_ context.Context, sub *domain.Subscription, now time.Time) (domain.Change, error) {
		if sub.UserID() != cmd.UserID {
			return domain.Change{}, ErrNotOwner
		}
		return sub.ToggleEnabled(now, cmd.Enabled)
	})
}
