package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for subscriptions.
type Repository interface {
	// Save inserts a new subscription or updates an existing one.
	// Updates fail with ErrConcurrencyConflict when the stored version moved.
	Save(ctx context.Context, sub *Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// FindByIDForUpdate loads a subscription and locks its row for the
	// surrounding transaction where the driver supports it.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Subscription, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*Subscription, error)
	FindOpenByScope(ctx context.Context, userID uuid.UUID, scope Scope) ([]*Subscription, error)
	FindActiveByTariffCode(ctx context.Context, userID uuid.UUID, code string) ([]*Subscription, error)
	// FindDueForExpiry returns active subscriptions whose end date is at or before now,
	// ordered by (end date, id) and starting strictly after the cursor when one is given.
	FindDueForExpiry(ctx context.Context, now time.Time, after *SweepCursor, limit int) ([]*Subscription, error)
	// FindEndingBetween returns active subscriptions ending within (from, to].
	FindEndingBetween(ctx context.Context, from, to time.Time, limit int) ([]*Subscription, error)
	HasAccess(ctx context.Context, userID uuid.UUID, scope *Scope, now time.Time) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]*Subscription, int, error)
}

// SweepCursor is a position in (end date, id) order.
type SweepCursor struct {
	EndDate time.Time
	ID      uuid.UUID
}

// CursorAt returns the cursor positioned on sub, or nil when it has no end date.
func CursorAt(sub *Subscription) *SweepCursor {
	if sub == nil || sub.EndDate() == nil {
		return nil
	}
	return &SweepCursor{EndDate: *sub.EndDate(), ID: sub.ID()}
}

// ListFilter narrows subscription listings.
type ListFilter struct {
	UserID         *uuid.UUID
	SubscriptionID *uuid.UUID
	TariffID       *uuid.UUID
	Statuses       []Status
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	EndFrom        *time.Time
	EndTo          *time.Time
	Sort           Sort
	Page           Page
}

// HistoryRepository is the append-only store for history entries.
type HistoryRepository interface {
	Append(ctx context.Context, entry HistoryEntry) error
	List(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, int, error)
}

// HistoryFilter narrows history listings.
type HistoryFilter struct {
	SubscriptionID *uuid.UUID
	UserID         *uuid.UUID
	Actions        []Action
	From           *time.Time
	To             *time.Time
	Sort           Sort
	Page           Page
}

// CatalogRepository provides read access to tariffs and price overrides.
type CatalogRepository interface {
	FindTariff(ctx context.Context, id uuid.UUID) (*Tariff, error)
	FindTariffByCode(ctx context.Context, code string) (*Tariff, error)
	ListActiveTariffs(ctx context.Context) ([]Tariff, error)
	FindPriceOverrides(ctx context.Context, tariffID, locationID uuid.UUID) ([]PriceOverride, error)
}

// ScopeDirectory resolves display names for categories and locations.
// Missing entries are reported as ("", false, nil).
type ScopeDirectory interface {
	CategoryName(ctx context.Context, id uuid.UUID) (string, bool, error)
	LocationName(ctx context.Context, id uuid.UUID) (string, bool, error)
}

// TrialRegistry tracks which users consumed their free trial.
type TrialRegistry interface {
	IsTrialUsed(ctx context.Context, userID uuid.UUID) (bool, error)
	MarkTrialUsed(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// RoleResolver reports whether a user has blanket administrator access.
type RoleResolver interface {
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
}
