package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// TariffLookup resolves tariffs for snapshots.
type TariffLookup interface {
	Tariff(ctx context.Context, id uuid.UUID) (*domain.Tariff, error)
}

// Log is the append-only subscription audit trail.
type Log struct {
	history domain.HistoryRepository
	tariffs TariffLookup
	scopes  domain.ScopeDirectory
}

// NewLog creates a Log.
func NewLog(history domain.HistoryRepository, tariffs TariffLookup, scopes domain.ScopeDirectory) *Log {
	return &Log{
		history: history,
		tariffs: tariffs,
		scopes:  scopes,
	}
}

// Append records a change for a subscription with names copied as of now.
// The entry names the change's tariff when it carries one, the subscription's otherwise.
func (l *Log) Append(ctx context.Context, sub *domain.Subscription, change domain.Change, now time.Time) (domain.HistoryEntry, error) {
	tariffID := sub.TariffID()
	if change.TariffID != nil {
		tariffID = *change.TariffID
	}
	snapshot, err := l.Snapshot(ctx, tariffID, sub.Scope())
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	entry := domain.NewHistoryEntry(sub, change, snapshot, now)
	if err := l.history.Append(ctx, entry); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("append history: %w", err)
	}
	return entry, nil
}

// Snapshot builds the denormalized names for a tariff and scope.
func (l *Log) Snapshot(ctx context.Context, tariffID uuid.UUID, scope domain.Scope) (domain.Snapshot, error) {
	tariff, err := l.tariffs.Tariff(ctx, tariffID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	category, ok, err := l.scopes.CategoryName(ctx, scope.CategoryID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("lookup category: %w", err)
	}
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("category %s: %w", scope.CategoryID, domain.ErrNotFound)
	}

	location, ok, err := l.scopes.LocationName(ctx, scope.LocationID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("lookup location: %w", err)
	}
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("location %s: %w", scope.LocationID, domain.ErrNotFound)
	}

	return domain.Snapshot{
		TariffName:   tariff.Name,
		CategoryName: category,
		LocationName: location,
	}, nil
}
