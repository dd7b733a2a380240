package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	sharedPersistence "github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/persistence"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// PostgresSubscriptionRepository implements domain.Repository with PostgreSQL.
type PostgresSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSubscriptionRepository creates a new repository.
func NewPostgresSubscriptionRepository(pool *pgxpool.Pool) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{pool: pool}
}

// Save inserts a new subscription or updates an existing one under a version check.
func (r *PostgresSubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	execer := sharedPersistence.Executor(ctx, r.pool)
	reminders := reminderValues(sub)

	if sub.IsNew() {
		query := `
			INSERT INTO subscriptions (` + subscriptionColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			        $16, $17, $18, $19, 1, $20, $21)
		`
		_, err := execer.Exec(ctx, query,
			sub.ID(), sub.UserID(), sub.TariffID(), sub.Scope().CategoryID, sub.Scope().LocationID,
			int64(sub.PricePaid()), sub.StartDate(), sub.EndDate(), string(sub.Status()), sub.IsEnabled(),
			sub.PaymentMethod(), sub.AdminNotes(), sub.ApprovedBy(), sub.ApprovedAt(), sub.RequestedTariffID(),
			reminders[0], reminders[1], reminders[2], reminders[3],
			sub.CreatedAt(), sub.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("insert subscription: %w", err)
		}
		sub.MarkPersisted()
		return nil
	}

	query := `
		UPDATE subscriptions SET
			tariff_id = $3, price_paid = $4, start_date = $5, end_date = $6, status = $7,
			is_enabled = $8, payment_method = $9, admin_notes = $10, approved_by = $11,
			approved_at = $12, requested_tariff_id = $13,
			notified_3d_at = $14, notified_1d_at = $15, notified_1h_at = $16, notified_15m_at = $17,
			updated_at = $18, version = version + 1
		WHERE id = $1 AND version = $2
	`
	tag, err := execer.Exec(ctx, query,
		sub.ID(), sub.Version(), sub.TariffID(), int64(sub.PricePaid()), sub.StartDate(), sub.EndDate(),
		string(sub.Status()), sub.IsEnabled(), sub.PaymentMethod(), sub.AdminNotes(), sub.ApprovedBy(),
		sub.ApprovedAt(), sub.RequestedTariffID(),
		reminders[0], reminders[1], reminders[2], reminders[3],
		sub.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: subscription %s at version %d", domain.ErrConcurrencyConflict, sub.ID(), sub.Version())
	}
	sub.MarkPersisted()
	return nil
}

// FindByID returns a subscription, or nil when it does not exist.
func (r *PostgresSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	return r.findOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
}

// FindByIDForUpdate loads a subscription and locks its row until the transaction ends.
func (r *PostgresSubscriptionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	return r.findOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresSubscriptionRepository) findOne(ctx context.Context, query string, args ...any) (*domain.Subscription, error) {
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs, err := scanPostgresSubscriptions(rows)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return subs[0], nil
}

func (r *PostgresSubscriptionRepository) findMany(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPostgresSubscriptions(rows)
}

// FindByUserID returns every subscription a user holds, newest first.
func (r *PostgresSubscriptionRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	return r.findMany(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// FindOpenByScope returns the user's pending or active subscriptions for a scope.
func (r *PostgresSubscriptionRepository) FindOpenByScope(ctx context.Context, userID uuid.UUID, scope domain.Scope) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE user_id = $1 AND category_id = $2 AND location_id = $3
		  AND status IN ('pending', 'active')
		ORDER BY created_at
	`
	return r.findMany(ctx, query, userID, scope.CategoryID, scope.LocationID)
}

// FindActiveByTariffCode returns the user's active subscriptions on tariffs with the given code.
func (r *PostgresSubscriptionRepository) FindActiveByTariffCode(ctx context.Context, userID uuid.UUID, code string) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + prefixed("s", subscriptionColumns) + ` FROM subscriptions s
		JOIN tariffs t ON t.id = s.tariff_id
		WHERE s.user_id = $1 AND t.code = $2 AND s.status = 'active'
		ORDER BY s.created_at
	`
	return r.findMany(ctx, query, userID, code)
}

// FindDueForExpiry returns active subscriptions whose end date is at or before now.
func (r *PostgresSubscriptionRepository) FindDueForExpiry(ctx context.Context, now time.Time, after *domain.SweepCursor, limit int) ([]*domain.Subscription, error) {
	if after == nil {
		return r.findMany(ctx, `
			SELECT `+subscriptionColumns+` FROM subscriptions
			WHERE status = 'active' AND end_date <= $1
			ORDER BY end_date, id
			LIMIT $2`, now, limit)
	}
	return r.findMany(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = 'active' AND end_date <= $1
		  AND (end_date, id) > ($2::timestamptz, $3::uuid)
		ORDER BY end_date, id
		LIMIT $4`, now, after.EndDate, after.ID, limit)
}

// FindEndingBetween returns active subscriptions ending within (from, to].
func (r *PostgresSubscriptionRepository) FindEndingBetween(ctx context.Context, from, to time.Time, limit int) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE status = 'active' AND end_date > $1 AND end_date <= $2
		ORDER BY end_date, id
		LIMIT $3
	`
	return r.findMany(ctx, query, from, to, limit)
}

// HasAccess reports whether any subscription grants access at now, optionally within a scope.
func (r *PostgresSubscriptionRepository) HasAccess(ctx context.Context, userID uuid.UUID, scope *domain.Scope, now time.Time) (bool, error) {
	w := postgresWhere()
	w.add("user_id = %s", userID)
	w.addRaw("status IN ('active', 'extend_pending')")
	w.add("end_date >= %s", now)
	if scope != nil {
		w.add("category_id = %s", scope.CategoryID)
		w.add("location_id = %s", scope.LocationID)
	}

	var ok bool
	err := sharedPersistence.Executor(ctx, r.pool).
		QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions`+w.sql()+`)`, w.args...).
		Scan(&ok)
	return ok, err
}

// List returns one page of subscriptions and the total matching count.
func (r *PostgresSubscriptionRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Subscription, int, error) {
	w := postgresWhere()
	applySubscriptionFilter(w, filter)
	if len(filter.Statuses) > 0 {
		w.add("status = ANY(%s)", pq.Array(statusStrings(filter.Statuses)))
	}

	execer := sharedPersistence.Executor(ctx, r.pool)
	var total int
	if err := execer.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count subscriptions: %w", err)
	}

	page := filter.Page.Normalize()
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions` + w.sql() +
		orderBy(filter.Sort, "id") +
		fmt.Sprintf(" LIMIT %s OFFSET %s", w.next(page.PerPage), w.next(page.Offset()))

	subs, err := r.findMany(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, total, nil
}

// applySubscriptionFilter adds the dialect-neutral list predicates.
func applySubscriptionFilter(w *whereBuilder, f domain.ListFilter) {
	if f.UserID != nil {
		w.add("user_id = %s", *f.UserID)
	}
	if f.SubscriptionID != nil {
		w.add("id = %s", *f.SubscriptionID)
	}
	if f.TariffID != nil {
		w.add("tariff_id = %s", *f.TariffID)
	}
	if f.CreatedFrom != nil {
		w.add("created_at >= %s", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		w.add("created_at <= %s", *f.CreatedTo)
	}
	if f.EndFrom != nil {
		w.add("end_date >= %s", *f.EndFrom)
	}
	if f.EndTo != nil {
		w.add("end_date <= %s", *f.EndTo)
	}
}

func scanPostgresSubscriptions(rows pgx.Rows) ([]*domain.Subscription, error) {
	var subs []*domain.Subscription
	for rows.Next() {
		var (
			st        domain.SubscriptionState
			price     int64
			status    string
			reminders [4]*time.Time
		)
		err := rows.Scan(
			&st.ID, &st.UserID, &st.TariffID, &st.CategoryID, &st.LocationID, &price,
			&st.StartDate, &st.EndDate, &status, &st.Enabled, &st.PaymentMethod, &st.AdminNotes,
			&st.ApprovedBy, &st.ApprovedAt, &st.RequestedTariffID,
			&reminders[0], &reminders[1], &reminders[2], &reminders[3],
			&st.Version, &st.CreatedAt, &st.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		st.PricePaid = domain.Money(price)
		st.Status = domain.Status(status)
		st.Reminders = remindersFromColumns(reminders)
		subs = append(subs, domain.RehydrateSubscription(st))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

// reminderValues returns the reminder stamps in reminderColumns order.
func reminderValues(sub *domain.Subscription) [4]*time.Time {
	var out [4]*time.Time
	for i, rc := range reminderColumns {
		if at, ok := sub.ReminderSentAt(rc.window); ok {
			out[i] = &at
		}
	}
	return out
}

func remindersFromColumns(values [4]*time.Time) map[domain.ReminderWindow]time.Time {
	out := make(map[domain.ReminderWindow]time.Time)
	for i, rc := range reminderColumns {
		if values[i] != nil {
			out[rc.window] = *values[i]
		}
	}
	return out
}

// prefixed qualifies a comma separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
