package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// ListSubscriptionsQuery contains the parameters for listing subscriptions.
type ListSubscriptionsQuery struct {
	UserID      *uuid.UUID
	TariffID    *uuid.UUID
	Statuses    []domain.Status
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	DaysLeftMin int // 0 disables the bound
	DaysLeftMax int // 0 disables the bound
	Sort        domain.Sort
	Page        domain.Page
	Now         time.Time
}

// SubscriptionPage is one page of subscriptions.
type SubscriptionPage struct {
	Items []SubscriptionDTO `json:"items"`
	Meta  domain.PageMeta   `json:"meta"`
}

// ListSubscriptionsHandler handles the ListSubscriptionsQuery.
type ListSubscriptionsHandler struct {
	repo domain.Repository
}

// NewListSubscriptionsHandler creates a new ListSubscriptionsHandler.
func NewListSubscriptionsHandler(repo domain.Repository) *ListSubscriptionsHandler {
	return &ListSubscriptionsHandler{repo: repo}
}

// Handle executes the ListSubscriptionsQuery.
func (h *ListSubscriptionsHandler) Handle(ctx context.Context, query ListSubscriptionsQuery) (SubscriptionPage, error) {
	sort, err := domain.SubscriptionSort(query.Sort)
	if err != nil {
		return SubscriptionPage{}, err
	}
	for _, s := range query.Statuses {
		if !s.IsValid() {
			return SubscriptionPage{}, fmt.Errorf("unknown status %q", s)
		}
	}
	now := query.Now
	if now.IsZero() {
		now = time.Now()
	}

	filter := domain.ListFilter{
		UserID:      query.UserID,
		TariffID:    query.TariffID,
		Statuses:    query.Statuses,
		CreatedFrom: query.CreatedFrom,
		CreatedTo:   query.CreatedTo,
		Sort:        sort,
		Page:        query.Page.Normalize(),
	}
	if query.DaysLeftMin > 0 {
		from := now.AddDate(0, 0, query.DaysLeftMin)
		filter.EndFrom = &from
	}
	if query.DaysLeftMax > 0 {
		to := now.AddDate(0, 0, query.DaysLeftMax)
		filter.EndTo = &to
	}

	subs, total, err := h.repo.List(ctx, filter)
	if err != nil {
		return SubscriptionPage{}, fmt.Errorf("list subscriptions: %w", err)
	}

	items := make([]SubscriptionDTO, 0, len(subs))
	for _, sub := range subs {
		items = append(items, NewSubscriptionDTO(sub, now))
	}
	return SubscriptionPage{Items: items, Meta: domain.NewPageMeta(filter.Page, total)}, nil
}
