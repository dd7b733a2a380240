package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sharedPersistence "github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/persistence"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// SQLiteSubscriptionRepository implements domain.Repository with SQLite.
// SQLite serializes writers, so FindByIDForUpdate relies on the version check alone.
type SQLiteSubscriptionRepository struct {
	dbConn *sql.DB
}

// NewSQLiteSubscriptionRepository creates a new repository.
func NewSQLiteSubscriptionRepository(dbConn *sql.DB) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{dbConn: dbConn}
}

// Save inserts a new subscription or updates an existing one under a version check.
func (r *SQLiteSubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	db := sharedPersistence.SQLiteExecutor(ctx, r.dbConn)
	reminders := reminderValues(sub)

	if sub.IsNew() {
		query := `
			INSERT INTO subscriptions (` + subscriptionColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			sub.ID().String(), sub.UserID().String(), sub.TariffID().String(),
			sub.Scope().CategoryID.String(), sub.Scope().LocationID.String(),
			int64(sub.PricePaid()),
			sharedPersistence.NullSQLiteTime(sub.StartDate()),
			sharedPersistence.NullSQLiteTime(sub.EndDate()),
			string(sub.Status()), sub.IsEnabled(), sub.PaymentMethod(), sub.AdminNotes(),
			nullUUID(sub.ApprovedBy()), sharedPersistence.NullSQLiteTime(sub.ApprovedAt()),
			nullUUID(sub.RequestedTariffID()),
			sharedPersistence.NullSQLiteTime(reminders[0]),
			sharedPersistence.NullSQLiteTime(reminders[1]),
			sharedPersistence.NullSQLiteTime(reminders[2]),
			sharedPersistence.NullSQLiteTime(reminders[3]),
			sharedPersistence.FormatSQLiteTime(sub.CreatedAt()),
			sharedPersistence.FormatSQLiteTime(sub.UpdatedAt()),
		)
		if err != nil {
			return fmt.Errorf("insert subscription: %w", err)
		}
		sub.MarkPersisted()
		return nil
	}

	query := `
		UPDATE subscriptions SET
			tariff_id = ?, price_paid = ?, start_date = ?, end_date = ?, status = ?,
			is_enabled = ?, payment_method = ?, admin_notes = ?, approved_by = ?,
			approved_at = ?, requested_tariff_id = ?,
			notified_3d_at = ?, notified_1d_at = ?, notified_1h_at = ?, notified_15m_at = ?,
			updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`
	res, err := db.ExecContext(ctx, query,
		sub.TariffID().String(), int64(sub.PricePaid()),
		sharedPersistence.NullSQLiteTime(sub.StartDate()),
		sharedPersistence.NullSQLiteTime(sub.EndDate()),
		string(sub.Status()), sub.IsEnabled(), sub.PaymentMethod(), sub.AdminNotes(),
		nullUUID(sub.ApprovedBy()), sharedPersistence.NullSQLiteTime(sub.ApprovedAt()),
		nullUUID(sub.RequestedTariffID()),
		sharedPersistence.NullSQLiteTime(reminders[0]),
		sharedPersistence.NullSQLiteTime(reminders[1]),
		sharedPersistence.NullSQLiteTime(reminders[2]),
		sharedPersistence.NullSQLiteTime(reminders[3]),
		sharedPersistence.FormatSQLiteTime(sub.UpdatedAt()),
		sub.ID().String(), sub.Version(),
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: subscription %s at version %d", domain.ErrConcurrencyConflict, sub.ID(), sub.Version())
	}
	sub.MarkPersisted()
	return nil
}

// FindByID returns a subscription, or nil when it does not exist.
func (r *SQLiteSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	subs, err := r.findMany(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id.String())
	if err != nil || len(subs) == 0 {
		return nil, err
	}
	return subs[0], nil
}

// FindByIDForUpdate loads a subscription inside the caller's transaction.
func (r *SQLiteSubscriptionRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	return r.FindByID(ctx, id)
}

func (r *SQLiteSubscriptionRepository) findMany(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteSubscriptions(rows)
}

// FindByUserID returns every subscription a user holds, newest first.
func (r *SQLiteSubscriptionRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	return r.findMany(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? ORDER BY created_at DESC`, userID.String())
}

// FindOpenByScope returns the user's pending or active subscriptions for a scope.
func (r *SQLiteSubscriptionRepository) FindOpenByScope(ctx context.Context, userID uuid.UUID, scope domain.Scope) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE user_id = ? AND category_id = ? AND location_id = ?
		  AND status IN ('pending', 'active')
		ORDER BY created_at
	`
	return r.findMany(ctx, query, userID.String(), scope.CategoryID.String(), scope.LocationID.String())
}

// FindActiveByTariffCode returns the user's active subscriptions on tariffs with the given code.
func (r *SQLiteSubscriptionRepository) FindActiveByTariffCode(ctx context.Context, userID uuid.UUID, code string) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + prefixed("s", subscriptionColumns) + ` FROM subscriptions s
		JOIN tariffs t ON t.id = s.tariff_id
		WHERE s.user_id = ? AND t.code = ? AND s.status = 'active'
		ORDER BY s.created_at
	`
	return r.findMany(ctx, query, userID.String(), code)
}

// FindDueForExpiry returns active subscriptions whose end date is at or before now.
func (r *SQLiteSubscriptionRepository) FindDueForExpiry(ctx context.Context, now time.Time, after *domain.SweepCursor, limit int) ([]*domain.Subscription, error) {
	args := []any{sharedPersistence.FormatSQLiteTime(now)}
	cursor := ""
	if after != nil {
		end := sharedPersistence.FormatSQLiteTime(after.EndDate)
		cursor = "AND (end_date > ? OR (end_date = ? AND id > ?))"
		args = append(args, end, end, after.ID.String())
	}
	query := `
		SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE status = 'active' AND end_date <= ? ` + cursor + `
		ORDER BY end_date, id
		LIMIT ?
	`
	return r.findMany(ctx, query, append(args, limit)...)
}

// FindEndingBetween returns active subscriptions ending within (from, to].
func (r *SQLiteSubscriptionRepository) FindEndingBetween(ctx context.Context, from, to time.Time, limit int) ([]*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE status = 'active' AND end_date > ? AND end_date <= ?
		ORDER BY end_date, id
		LIMIT ?
	`
	return r.findMany(ctx, query,
		sharedPersistence.FormatSQLiteTime(from), sharedPersistence.FormatSQLiteTime(to), limit)
}

// HasAccess reports whether any subscription grants access at now, optionally within a scope.
func (r *SQLiteSubscriptionRepository) HasAccess(ctx context.Context, userID uuid.UUID, scope *domain.Scope, now time.Time) (bool, error) {
	w := sqliteWhere()
	w.add("user_id = %s", userID)
	w.addRaw("status IN ('active', 'extend_pending')")
	w.add("end_date >= %s", now)
	if scope != nil {
		w.add("category_id = %s", scope.CategoryID)
		w.add("location_id = %s", scope.LocationID)
	}

	var ok bool
	err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).
		QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions`+w.sql()+`)`, w.args...).
		Scan(&ok)
	return ok, err
}

// List returns one page of subscriptions and the total matching count.
func (r *SQLiteSubscriptionRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Subscription, int, error) {
	w := sqliteWhere()
	applySubscriptionFilter(w, filter)
	w.addIn("status", toAny(statusStrings(filter.Statuses)))

	db := sharedPersistence.SQLiteExecutor(ctx, r.dbConn)
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions`+w.sql(), w.args...).Scan(&total); err != nil {
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

func scanSQLiteSubscriptions(rows *sql.Rows) ([]*domain.Subscription, error) {
	var subs []*domain.Subscription
	for rows.Next() {
		var (
			st                                           domain.SubscriptionState
			id, userID, tariffID, categoryID, locationID string
			price                                        int64
			status                                       string
			createdAt, updatedAt                         string
			startDate, endDate, approvedAt               sql.NullString
			approvedBy, requestedTariffID                sql.NullString
			reminders                                    [4]sql.NullString
		)
		err := rows.Scan(
			&id, &userID, &tariffID, &categoryID, &locationID, &price,
			&startDate, &endDate, &status, &st.Enabled, &st.PaymentMethod, &st.AdminNotes,
			&approvedBy, &approvedAt, &requestedTariffID,
			&reminders[0], &reminders[1], &reminders[2], &reminders[3],
			&st.Version, &createdAt, &updatedAt,
		)
		if err != nil {
			return nil, err
		}

		if st.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse subscription id: %w", err)
		}
		st.UserID, _ = uuid.Parse(userID)
		st.TariffID, _ = uuid.Parse(tariffID)
		st.CategoryID, _ = uuid.Parse(categoryID)
		st.LocationID, _ = uuid.Parse(locationID)
		st.PricePaid = domain.Money(price)
		st.Status = domain.Status(status)
		st.ApprovedBy = parseNullUUID(approvedBy)
		st.RequestedTariffID = parseNullUUID(requestedTariffID)
		st.CreatedAt, _ = sharedPersistence.ParseSQLiteTime(createdAt)
		st.UpdatedAt, _ = sharedPersistence.ParseSQLiteTime(updatedAt)
		if st.StartDate, err = sharedPersistence.ParseNullSQLiteTime(startDate); err != nil {
			return nil, err
		}
		if st.EndDate, err = sharedPersistence.ParseNullSQLiteTime(endDate); err != nil {
			return nil, err
		}
		st.ApprovedAt, _ = sharedPersistence.ParseNullSQLiteTime(approvedAt)

		var stamps [4]*time.Time
		for i := range reminders {
			stamps[i], _ = sharedPersistence.ParseNullSQLiteTime(reminders[i])
		}
		st.Reminders = remindersFromColumns(stamps)

		subs = append(subs, domain.RehydrateSubscription(st))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func parseNullUUID(s sql.NullString) *uuid.UUID {
	if !s.Valid {
		return nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil
	}
	return &id
}
