package queries

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// GetSubscriptionHandler returns a single subscription.
type GetSubscriptionHandler struct {
	repo domain.Repository
}

// NewGetSubscriptionHandler creates a new GetSubscriptionHandler.
func NewGetSubscriptionHandler(repo domain.Repository) *GetSubscriptionHandler {
	return &GetSubscriptionHandler{repo: repo}
}

// Handle loads a subscription by id.
func (h *GetSubscriptionHandler) Handle(ctx context.Context, id uuid.UUID, now time.Time) (SubscriptionDTO, error) {
	sub, err := h.repo.FindByID(ctx, id)
	if err != nil {
		return SubscriptionDTO{}, err
	}
	if sub == nil {
		return SubscriptionDTO{}, fmt.Errorf("subscription %s: %w", id, domain.ErrNotFound)
	}
	return NewSubscriptionDTO(sub, now), nil
}
