package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/estatecrm/internal/shared/domain"
	"github.com/google/uuid"
)

const aggregateType = "Subscription"

// Routing keys for subscription events.
const (
	RoutingKeyCreated            = "subscriptions.subscription.created"
	RoutingKeyActivated          = "subscriptions.subscription.activated"
	RoutingKeyExtended           = "subscriptions.subscription.extended"
	RoutingKeyExtensionRequested = "subscriptions.subscription.extend_requested"
	RoutingKeyTariffChanged      = "subscriptions.subscription.tariff_changed"
	RoutingKeyToggled            = "subscriptions.subscription.toggled"
	RoutingKeyCancelled          = "subscriptions.subscription.cancelled"
	RoutingKeyExpired            = "subscriptions.subscription.expired"
	RoutingKeyExpiringSoon       = "subscriptions.subscription.expiring_soon"
)

// SubscriptionCreated is emitted when a subscription is created or requested.
type SubscriptionCreated struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	TariffID       uuid.UUID `json:"tariff_id"`
	CategoryID     uuid.UUID `json:"category_id"`
	LocationID     uuid.UUID `json:"location_id"`
	Origin         string    `json:"origin"`
	PricePaid      int64     `json:"price_paid"`
	At             time.Time `json:"at"`
}

// NewSubscriptionCreated creates a SubscriptionCreated event.
func NewSubscriptionCreated(s *Subscription, origin Action, at time.Time) *SubscriptionCreated {
	return &SubscriptionCreated{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeyCreated, at),
		SubscriptionID: s.ID(),
		UserID:         s.UserID(),
		TariffID:       s.TariffID(),
		CategoryID:     s.Scope().CategoryID,
		LocationID:     s.Scope().LocationID,
		Origin:         string(origin),
		PricePaid:      int64(s.PricePaid()),
		At:             at,
	}
}

// SubscriptionActivated is emitted when access is granted.
type SubscriptionActivated struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	UserID         uuid.UUID  `json:"user_id"`
	ApprovedBy     *uuid.UUID `json:"approved_by,omitempty"`
	DurationHours  int        `json:"duration_hours"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        time.Time  `json:"end_date"`
	PricePaid      int64      `json:"price_paid"`
}

// NewSubscriptionActivated creates a SubscriptionActivated event.
func NewSubscriptionActivated(s *Subscription, hours int, at time.Time) *SubscriptionActivated {
	return &SubscriptionActivated{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeyActivated, at),
		SubscriptionID: s.ID(),
		UserID:         s.UserID(),
		ApprovedBy:     s.ApprovedBy(),
		DurationHours:  hours,
		StartDate:      derefTime(s.StartDate(), at),
		EndDate:        derefTime(s.EndDate(), at),
		PricePaid:      int64(s.PricePaid()),
	}
}

// SubscriptionExtended is emitted when an administrator extends a subscription.
type SubscriptionExtended struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	DurationHours  int       `json:"duration_hours"`
	EndDate        time.Time `json:"end_date"`
	PricePaid      int64     `json:"price_paid"`
}

// NewSubscriptionExtended creates a SubscriptionExtended event.
func NewSubscriptionExtended(s *Subscription, hours int, at time.Time) *SubscriptionExtended {
	return &SubscriptionExtended{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeyExtended, at),
		SubscriptionID: s.ID(),
		UserID:         s.UserID(),
		DurationHours:  hours,
		EndDate:        derefTime(s.EndDate(), at),
		PricePaid:      int64(s.PricePaid()),
	}
}

// SubscriptionExtensionRequested is emitted when a user asks for more time.
type SubscriptionExtensionRequested struct {
	sharedDomain.BaseEvent
	SubscriptionID    uuid.UUID `json:"subscription_id"`
	UserID            uuid.UUID `json:"user_id"`
	RequestedTariffID uuid.UUID `json:"requested_tariff_id"`
	At                time.Time `json:"at"`
}

// NewSubscriptionExtensionRequested creates a SubscriptionExtensionRequested event.
func NewSubscriptionExtensionRequested(s *Subscription, tariffID uuid.UUID, at time.Time) *SubscriptionExtensionRequested {
	return &SubscriptionExtensionRequested{
		BaseEvent:         sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeyExtensionRequested, at),
		SubscriptionID:    s.ID(),
		UserID:            s.UserID(),
		RequestedTariffID: tariffID,
		At:                at,
	}
}

// SubscriptionTariffChanged is emitted when the subscription switches tariff.
type SubscriptionTariffChanged struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	TariffID       uuid.UUID `json:"tariff_id"`
	CarriedHours   int       `json:"carried_hours"`
	EndDate        time.Time `json:"end_date"`
	PricePaid      int64     `json:"price_paid"`
}

// NewSubscriptionTariffChanged creates a SubscriptionTariffChanged event.
func NewSubscriptionTariffChanged(s *Subscription, carried int, at time.Time) *SubscriptionTariffChanged {
	return &SubscriptionTariffChanged{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeyTariffChanged, at),
		SubscriptionID: s.ID(),
		UserID:         s.UserID(),
		TariffID:       s.TariffID(),
		CarriedHours:   carried,
		EndDate:        derefTime(s.EndDate(), at),
		PricePaid:      int64(s.PricePaid()),
	}
}

// SubscriptionToggled is emitted when the user pauses or resumes access.
type SubscriptionToggled struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	Enabled        bool      `json:"enabled"`
	At             time.Time `json:"at"`
}

// NewSubscriptionToggled creates a SubscriptionToggled event.
func NewSubscriptionToggled(s *Subscription, at time.Time) *SubscriptionToggled {
	return &SubscriptionToggled{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeyToggled, at),
		SubscriptionID: s.ID(),
		UserID:         s.UserID(),
		Enabled:        s.IsEnabled(),
		At:             at,
	}
}

// SubscriptionCancelled is emitted when a subscription is cancelled.
type SubscriptionCancelled struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	Reason         string    `json:"reason"`
	At             time.Time `json:"at"`
}

// NewSubscriptionCancelled creates a SubscriptionCancelled event.
func NewSubscriptionCancelled(s *Subscription, reason string, at time.Time) *SubscriptionCancelled {
	return &SubscriptionCancelled{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeyCancelled, at),
		SubscriptionID: s.ID(),
		UserID:         s.UserID(),
		Reason:         reason,
		At:             at,
	}
}

// SubscriptionExpired is emitted by the sweeper when a subscription lapses.
type SubscriptionExpired struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	EndDate        time.Time `json:"end_date"`
	At             time.Time `json:"at"`
}

// NewSubscriptionExpired creates a SubscriptionExpired event.
func NewSubscriptionExpired(s *Subscription, at time.Time) *SubscriptionExpired {
	return &SubscriptionExpired{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeyExpired, at),
		SubscriptionID: s.ID(),
		UserID:         s.UserID(),
		EndDate:        derefTime(s.EndDate(), at),
		At:             at,
	}
}

// SubscriptionExpiringSoon is emitted when a reminder window is entered.
type SubscriptionExpiringSoon struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	Window         string    `json:"window"`
	EndDate        time.Time `json:"end_date"`
}

// NewSubscriptionExpiringSoon creates a SubscriptionExpiringSoon event.
func NewSubscriptionExpiringSoon(s *Subscription, w ReminderWindow, at time.Time) *SubscriptionExpiringSoon {
	return &SubscriptionExpiringSoon{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeyExpiringSoon, at),
		SubscriptionID: s.ID(),
		UserID:         s.UserID(),
		Window:         string(w),
		EndDate:        derefTime(s.EndDate(), at),
	}
}

func derefTime(t *time.Time, fallback time.Time) time.Time {
	if t == nil {
		return fallback
	}
	return *t
}
