package persistence

import (
	"context"
	"fmt"

	sharedPersistence "github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/persistence"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// PostgresHistoryRepository is the append-only history store on PostgreSQL.
type PostgresHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresHistoryRepository creates a new repository.
func NewPostgresHistoryRepository(pool *pgxpool.Pool) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{pool: pool}
}

// Append inserts one history entry.
func (r *PostgresHistoryRepository) Append(ctx context.Context, e domain.HistoryEntry) error {
	query := `
		INSERT INTO subscription_history (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		e.ID, e.UserID, e.SubscriptionID, string(e.Action), e.TariffName, e.CategoryName,
		e.LocationName, int64(e.PricePaid), e.ActionDate, e.Notes,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// List returns one page of history entries and the total matching count.
func (r *PostgresHistoryRepository) List(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, int, error) {
	w := postgresWhere()
	applyHistoryFilter(w, filter)
	if len(filter.Actions) > 0 {
		w.add("action = ANY(%s)", pq.Array(actionStrings(filter.Actions)))
	}

	execer := sharedPersistence.Executor(ctx, r.pool)
	var total int
	if err := execer.QueryRow(ctx, `SELECT COUNT(*) FROM subscription_history`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	page := filter.Page.Normalize()
	query := `SELECT ` + historyColumns + ` FROM subscription_history` + w.sql() +
		orderBy(filter.Sort, "seq") +
		fmt.Sprintf(" LIMIT %s OFFSET %s", w.next(page.PerPage), w.next(page.Offset()))

	rows, err := execer.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries, err := scanPostgresHistory(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func applyHistoryFilter(w *whereBuilder, f domain.HistoryFilter) {
	if f.SubscriptionID != nil {
		w.add("subscription_id = %s", *f.SubscriptionID)
	}
	if f.UserID != nil {
		w.add("user_id = %s", *f.UserID)
	}
	if f.From != nil {
		w.add("action_date >= %s", *f.From)
	}
	if f.To != nil {
		w.add("action_date <= %s", *f.To)
	}
}

func scanPostgresHistory(rows pgx.Rows) ([]domain.HistoryEntry, error) {
	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var (
			e      domain.HistoryEntry
			action string
			price  int64
		)
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.SubscriptionID, &action, &e.TariffName, &e.CategoryName,
			&e.LocationName, &price, &e.ActionDate, &e.Notes,
		); err != nil {
			return nil, err
		}
		e.Action = domain.Action(action)
		e.PricePaid = domain.Money(price)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
