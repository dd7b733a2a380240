package persistence

import (
	"context"
	"database/sql"
	"fmt"

	sharedPersistence "github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/persistence"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// SQLiteHistoryRepository is the append-only history store on SQLite.
type SQLiteHistoryRepository struct {
	dbConn *sql.DB
}

// NewSQLiteHistoryRepository creates a new repository.
func NewSQLiteHistoryRepository(dbConn *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{dbConn: dbConn}
}

// Append inserts one history entry.
func (r *SQLiteHistoryRepository) Append(ctx context.Context, e domain.HistoryEntry) error {
	query := `
		INSERT INTO subscription_history (` + historyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).ExecContext(ctx, query,
		e.ID.String(), e.UserID.String(), nullUUID(e.SubscriptionID), string(e.Action),
		e.TariffName, e.CategoryName, e.LocationName, int64(e.PricePaid),
		sharedPersistence.FormatSQLiteTime(e.ActionDate), e.Notes,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// List returns one page of history entries and the total matching count.
func (r *SQLiteHistoryRepository) List(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, int, error) {
	w := sqliteWhere()
	applyHistoryFilter(w, filter)
	w.addIn("action", toAny(actionStrings(filter.Actions)))

	db := sharedPersistence.SQLiteExecutor(ctx, r.dbConn)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscription_history`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	page := filter.Page.Normalize()
	query := `SELECT ` + historyColumns + ` FROM subscription_history` + w.sql() +
		orderBy(filter.Sort, "seq") +
		fmt.Sprintf(" LIMIT %s OFFSET %s", w.next(page.PerPage), w.next(page.Offset()))

	rows, err := db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var (
			e                  domain.HistoryEntry
			id, userID, action string
			actionDate         string
			subscriptionID     sql.NullString
			price              int64
		)
		if err := rows.Scan(
			&id, &userID, &subscriptionID, &action, &e.TariffName, &e.CategoryName,
			&e.LocationName, &price, &actionDate, &e.Notes,
		); err != nil {
			return nil, 0, err
		}
		e.ID, _ = uuid.Parse(id)
		e.UserID, _ = uuid.Parse(userID)
		e.SubscriptionID = parseNullUUID(subscriptionID)
		e.Action = domain.Action(action)
		e.PricePaid = domain.Money(price)
		e.ActionDate, _ = sharedPersistence.ParseSQLiteTime(actionDate)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
