package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/database"
	sharedPersistence "github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/persistence"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// SQLiteCatalogRepository reads tariffs and price overrides from SQLite.
// It also serves the scope directory, trial registry and admin roles.
type SQLiteCatalogRepository struct {
	dbConn *sql.DB
}

// NewSQLiteCatalogRepository creates a new repository.
func NewSQLiteCatalogRepository(dbConn *sql.DB) *SQLiteCatalogRepository {
	return &SQLiteCatalogRepository{dbConn: dbConn}
}

// FindTariff returns a tariff by id, or nil.
func (r *SQLiteCatalogRepository) FindTariff(ctx context.Context, id uuid.UUID) (*domain.Tariff, error) {
	return r.findTariff(ctx, `SELECT `+tariffColumns+` FROM tariffs WHERE id = ?`, id.String())
}

// FindTariffByCode returns a tariff by code, or nil.
func (r *SQLiteCatalogRepository) FindTariffByCode(ctx context.Context, code string) (*domain.Tariff, error) {
	return r.findTariff(ctx, `SELECT `+tariffColumns+` FROM tariffs WHERE code = ?`, code)
}

func (r *SQLiteCatalogRepository) findTariff(ctx context.Context, query string, arg any) (*domain.Tariff, error) {
	row := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryRowContext(ctx, query, arg)
	t, err := scanSQLiteTariff(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTariff(row rowScanner) (domain.Tariff, error) {
	var (
		t     domain.Tariff
		id    string
		price int64
	)
	if err := row.Scan(&id, &t.Name, &t.Code, &t.DurationHours, &price, &t.IsActive); err != nil {
		return domain.Tariff{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.Tariff{}, fmt.Errorf("parse tariff id: %w", err)
	}
	t.ID = parsed
	t.BasePrice = domain.Money(price)
	return t, nil
}

// ListActiveTariffs returns active tariffs ordered by duration.
func (r *SQLiteCatalogRepository) ListActiveTariffs(ctx context.Context) ([]domain.Tariff, error) {
	rows, err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryContext(ctx,
		`SELECT `+tariffColumns+` FROM tariffs WHERE is_active = 1 ORDER BY duration_hours, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Tariff
	for rows.Next() {
		t, err := scanSQLiteTariff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindPriceOverrides returns every override for a tariff in a location.
func (r *SQLiteCatalogRepository) FindPriceOverrides(ctx context.Context, tariffID, locationID uuid.UUID) ([]domain.PriceOverride, error) {
	rows, err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryContext(ctx, `
		SELECT category_id, price
		FROM tariff_prices
		WHERE tariff_id = ? AND location_id = ?
		ORDER BY id
	`, tariffID.String(), locationID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PriceOverride
	for rows.Next() {
		var (
			categoryID sql.NullString
			price      int64
		)
		if err := rows.Scan(&categoryID, &price); err != nil {
			return nil, err
		}
		out = append(out, domain.PriceOverride{
			TariffID:   tariffID,
			LocationID: locationID,
			CategoryID: parseNullUUID(categoryID),
			Price:      domain.Money(price),
		})
	}
	return out, rows.Err()
}

// CategoryName returns a category's display name.
func (r *SQLiteCatalogRepository) CategoryName(ctx context.Context, id uuid.UUID) (string, bool, error) {
	return r.name(ctx, `SELECT name FROM categories WHERE id = ?`, id)
}

// LocationName returns a location's display name.
func (r *SQLiteCatalogRepository) LocationName(ctx context.Context, id uuid.UUID) (string, bool, error) {
	return r.name(ctx, `SELECT name FROM locations WHERE id = ?`, id)
}

func (r *SQLiteCatalogRepository) name(ctx context.Context, query string, id uuid.UUID) (string, bool, error) {
	var name string
	err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryRowContext(ctx, query, id.String()).Scan(&name)
	if err != nil {
		if database.IsNoRows(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return name, true, nil
}

// IsTrialUsed reports whether the user already consumed the free trial.
func (r *SQLiteCatalogRepository) IsTrialUsed(ctx context.Context, userID uuid.UUID) (bool, error) {
	var used bool
	err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).
		QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM user_trials WHERE user_id = ?)`, userID.String()).
		Scan(&used)
	return used, err
}

// MarkTrialUsed records trial consumption. Repeated calls keep the first timestamp.
func (r *SQLiteCatalogRepository) MarkTrialUsed(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).ExecContext(ctx,
		`INSERT INTO user_trials (user_id, used_at) VALUES (?, ?) ON CONFLICT (user_id) DO NOTHING`,
		userID.String(), sharedPersistence.FormatSQLiteTime(at),
	)
	if err != nil {
		return fmt.Errorf("mark trial used: %w", err)
	}
	return nil
}

// IsAdmin reports whether the user is listed as an administrator.
func (r *SQLiteCatalogRepository) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var ok bool
	err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).
		QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM admins WHERE user_id = ?)`, userID.String()).
		Scan(&ok)
	return ok, err
}
