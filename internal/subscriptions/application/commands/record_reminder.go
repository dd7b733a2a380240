package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// RecordReminderCommand stamps the due expiry reminder of one subscription as of Now.
type RecordReminderCommand struct {
	SubscriptionID uuid.UUID `validate:"required"`
	Now            time.Time `validate:"required"`
}

// ReminderResult reports which window, if any, was stamped.
type ReminderResult struct {
	Window   domain.ReminderWindow
	Reminded bool
}

// RecordReminderHandler handles the RecordReminderCommand.
// Reminders are not lifecycle transitions, so no history entry is written.
type RecordReminderHandler struct {
	Deps
	catalog Catalog
}

// NewRecordReminderHandler creates a new RecordReminderHandler.
func NewRecordReminderHandler(deps Deps, catalog Catalog) *RecordReminderHandler {
	return &RecordReminderHandler{Deps: deps, catalog: catalog}
}

// Handle stamps the shortest window the subscription has entered and emits
// an expiring-soon event for it.
func (h *RecordReminderHandler) Handle(ctx context.Context, cmd RecordReminderCommand) (ReminderResult, error) {
	if err := validateCommand(cmd); err != nil {
		return ReminderResult{}, err
	}

	var out ReminderResult
	_, err := h.transition(ctx, cmd.SubscriptionID, uuid.Nil, cmd.Now, func(ctx context.Context, sub *domain.Subscription, now time.Time) (domain.Change, error) {
		tariff, err := h.catalog.Tariff(ctx, sub.TariffID())
		if err != nil {
			return domain.Change{}, err
		}
		window, due := domain.DueReminder(sub, *tariff, now)
		if !due {
			return domain.Change{}, domain.ErrNoOp
		}
		if err := sub.MarkReminded(now, window); err != nil {
			return domain.Change{}, err
		}
		out = ReminderResult{Window: window, Reminded: true}
		return domain.Change{}, nil
	})
	if err != nil {
		return ReminderResult{}, err
	}
	return out, nil
}
