package domain

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies the lifecycle transition recorded by a history entry.
type Action string

const (
	ActionCreated         Action = "created"
	ActionRequested       Action = "requested"
	ActionActivated       Action = "activated"
	ActionExtended        Action = "extended"
	ActionExtendRequested Action = "extend_requested"
	ActionTariffChanged   Action = "tariff_changed"
	ActionEnabled         Action = "enabled"
	ActionDisabled        Action = "disabled"
	ActionCancelled       Action = "cancelled"
	ActionExpired         Action = "expired"
)

// IsValid checks if the action is known.
func (a Action) IsValid() bool {
	switch a {
	case ActionCreated, ActionRequested, ActionActivated, ActionExtended, ActionExtendRequested,
		ActionTariffChanged, ActionEnabled, ActionDisabled, ActionCancelled, ActionExpired:
		return true
	default:
		return false
	}
}

// Status labels shown alongside history entries.
const (
	LabelNone          = "none"
	LabelPending       = "awaiting activation"
	LabelActive        = "active"
	LabelExtendPending = "awaiting extension"
	LabelCancelled     = "cancelled"
	LabelExpired       = "expired"
	LabelUnknown       = "unknown"
)

// OldStatusLabel returns the status a subscription typically left when the action was recorded.
func (a Action) OldStatusLabel() string {
	switch a {
	case ActionCreated, ActionRequested:
		return LabelNone
	case ActionActivated:
		return LabelPending
	case ActionExtended, ActionExtendRequested, ActionCancelled, ActionExpired,
		ActionEnabled, ActionDisabled, ActionTariffChanged:
		return LabelActive
	default:
		return LabelUnknown
	}
}

// NewStatusLabel returns the status a subscription typically entered with the action.
func (a Action) NewStatusLabel() string {
	switch a {
	case ActionCreated, ActionRequested:
		return LabelPending
	case ActionExtendRequested:
		return LabelExtendPending
	case ActionActivated, ActionExtended, ActionTariffChanged, ActionEnabled, ActionDisabled:
		return LabelActive
	case ActionCancelled:
		return LabelCancelled
	case ActionExpired:
		return LabelExpired
	default:
		return LabelUnknown
	}
}

// HistoryEntry is an immutable audit record of one transition.
// Names are copied at write time so the entry stays legible after catalog changes.
type HistoryEntry struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	SubscriptionID *uuid.UUID
	Action         Action
	TariffName     string
	CategoryName   string
	LocationName   string
	PricePaid      Money
	ActionDate     time.Time
	Notes          string
}

// NewHistoryEntry records a change for a subscription with the given snapshot.
func NewHistoryEntry(sub *Subscription, change Change, snapshot Snapshot, at time.Time) HistoryEntry {
	subID := sub.ID()
	return HistoryEntry{
		ID:             uuid.New(),
		UserID:         sub.UserID(),
		SubscriptionID: &subID,
		Action:         change.Action,
		TariffName:     snapshot.TariffName,
		CategoryName:   snapshot.CategoryName,
		LocationName:   snapshot.LocationName,
		PricePaid:      change.PricePaid,
		ActionDate:     at,
		Notes:          change.Notes,
	}
}

// OldStatus returns the label of the status the action left.
func (e HistoryEntry) OldStatus() string { return e.Action.OldStatusLabel() }

// NewStatus returns the label of the status the action entered.
func (e HistoryEntry) NewStatus() string { return e.Action.NewStatusLabel() }
