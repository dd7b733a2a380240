package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// HistoryEntryDTO is a history entry prepared for display.
type HistoryEntryDTO struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	Action         string     `json:"action"`
	OldStatus      string     `json:"old_status"`
	NewStatus      string     `json:"new_status"`
	TariffName     string     `json:"tariff_name"`
	CategoryName   string     `json:"category_name"`
	LocationName   string     `json:"location_name"`
	PricePaid      int64      `json:"price_paid"`
	ActionDate     time.Time  `json:"action_date"`
	Notes          string     `json:"notes,omitempty"`
}

// HistoryPage is one page of history entries.
type HistoryPage struct {
	Items []HistoryEntryDTO `json:"items"`
	Meta  domain.PageMeta   `json:"meta"`
}

// ListHistory returns a filtered, sorted page of history.
// Ties on the sort column keep insertion order.
func (l *Log) ListHistory(ctx context.Context, filter domain.HistoryFilter) (HistoryPage, error) {
	sort, err := domain.HistorySort(filter.Sort)
	if err != nil {
		return HistoryPage{}, err
	}
	for _, a := range filter.Actions {
		if !a.IsValid() {
			return HistoryPage{}, fmt.Errorf("unknown action %q", a)
		}
	}
	filter.Sort = sort
	filter.Page = filter.Page.Normalize()

	entries, total, err := l.history.List(ctx, filter)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("list history: %w", err)
	}

	items := make([]HistoryEntryDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, toHistoryDTO(e))
	}
	return HistoryPage{Items: items, Meta: domain.NewPageMeta(filter.Page, total)}, nil
}

func toHistoryDTO(e domain.HistoryEntry) HistoryEntryDTO {
	return HistoryEntryDTO{
		ID:             e.ID,
		UserID:         e.UserID,
		SubscriptionID: e.SubscriptionID,
		Action:         string(e.Action),
		OldStatus:      e.OldStatus(),
		NewStatus:      e.NewStatus(),
		TariffName:     e.TariffName,
		CategoryName:   e.CategoryName,
		LocationName:   e.LocationName,
		PricePaid:      int64(e.PricePaid),
		ActionDate:     e.ActionDate,
		Notes:          e.Notes,
	}
}
