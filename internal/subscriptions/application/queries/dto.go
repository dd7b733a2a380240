package queries

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// SubscriptionDTO is a data transfer object for subscriptions.
type SubscriptionDTO struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	TariffID          uuid.UUID  `json:"tariff_id"`
	CategoryID        uuid.UUID  `json:"category_id"`
	LocationID        uuid.UUID  `json:"location_id"`
	Status            string     `json:"status"`
	Enabled           bool       `json:"is_enabled"`
	PricePaid         int64      `json:"price_paid"`
	StartDate         *time.Time `json:"start_date,omitempty"`
	EndDate           *time.Time `json:"end_date,omitempty"`
	PaymentMethod     string     `json:"payment_method,omitempty"`
	AdminNotes        string     `json:"admin_notes,omitempty"`
	ApprovedBy        *uuid.UUID `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	RequestedTariffID *uuid.UUID `json:"requested_tariff_id,omitempty"`
	HasAccess         bool       `json:"has_access"`
	TimeLeft          string     `json:"time_left"`
	Version           int        `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewSubscriptionDTO converts a subscription as seen at now.
func NewSubscriptionDTO(sub *domain.Subscription, now time.Time) SubscriptionDTO {
	return SubscriptionDTO{
		ID:                sub.ID(),
		UserID:            sub.UserID(),
		TariffID:          sub.TariffID(),
		CategoryID:        sub.Scope().CategoryID,
		LocationID:        sub.Scope().LocationID,
		Status:            string(sub.Status()),
		Enabled:           sub.IsEnabled(),
		PricePaid:         int64(sub.PricePaid()),
		StartDate:         sub.StartDate(),
		EndDate:           sub.EndDate(),
		PaymentMethod:     sub.PaymentMethod(),
		AdminNotes:        sub.AdminNotes(),
		ApprovedBy:        sub.ApprovedBy(),
		ApprovedAt:        sub.ApprovedAt(),
		RequestedTariffID: sub.RequestedTariffID(),
		HasAccess:         sub.HasAccessAt(now),
		TimeLeft:          TimeLeft(sub, now),
		Version:           sub.Version(),
		CreatedAt:         sub.CreatedAt(),
		UpdatedAt:         sub.UpdatedAt(),
	}
}

// TimeLeft renders the remaining time of an active subscription in the
// largest whole unit: days, then hours, then minutes.
func TimeLeft(sub *domain.Subscription, now time.Time) string {
	end := sub.EndDate()
	if sub.Status() != domain.StatusActive || end == nil || !now.Before(*end) {
		return "0 d"
	}
	left := end.Sub(now)
	if days := int(left / (24 * time.Hour)); days > 0 {
		return fmt.Sprintf("%d d", days)
	}
	if hours := int(left / time.Hour); hours > 0 {
		return fmt.Sprintf("%d h", hours)
	}
	return fmt.Sprintf("%d min", int(left/time.Minute))
}
