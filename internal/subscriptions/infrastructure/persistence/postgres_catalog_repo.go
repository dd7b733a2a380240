package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/database"
	sharedPersistence "github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/persistence"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tariffColumns = `id, name, code, duration_hours, base_price, is_active`

// PostgresCatalogRepository reads tariffs and price overrides from PostgreSQL.
// It also serves the scope directory, trial registry and admin roles.
type PostgresCatalogRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalogRepository creates a new repository.
func NewPostgresCatalogRepository(pool *pgxpool.Pool) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{pool: pool}
}

// FindTariff returns a tariff by id, or nil.
func (r *PostgresCatalogRepository) FindTariff(ctx context.Context, id uuid.UUID) (*domain.Tariff, error) {
	return r.findTariff(ctx, `SELECT `+tariffColumns+` FROM tariffs WHERE id = $1`, id)
}

// FindTariffByCode returns a tariff by code, or nil.
func (r *PostgresCatalogRepository) FindTariffByCode(ctx context.Context, code string) (*domain.Tariff, error) {
	return r.findTariff(ctx, `SELECT `+tariffColumns+` FROM tariffs WHERE code = $1`, code)
}

func (r *PostgresCatalogRepository) findTariff(ctx context.Context, query string, arg any) (*domain.Tariff, error) {
	var (
		t     domain.Tariff
		price int64
	)
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, arg).
		Scan(&t.ID, &t.Name, &t.Code, &t.DurationHours, &price, &t.IsActive)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	t.BasePrice = domain.Money(price)
	return &t, nil
}

// ListActiveTariffs returns active tariffs ordered by duration.
func (r *PostgresCatalogRepository) ListActiveTariffs(ctx context.Context) ([]domain.Tariff, error) {
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx,
		`SELECT `+tariffColumns+` FROM tariffs WHERE is_active ORDER BY duration_hours, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Tariff
	for rows.Next() {
		var (
			t     domain.Tariff
			price int64
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Code, &t.DurationHours, &price, &t.IsActive); err != nil {
			return nil, err
		}
		t.BasePrice = domain.Money(price)
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindPriceOverrides returns every override for a tariff in a location.
func (r *PostgresCatalogRepository) FindPriceOverrides(ctx context.Context, tariffID, locationID uuid.UUID) ([]domain.PriceOverride, error) {
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, `
		SELECT tariff_id, location_id, category_id, price
		FROM tariff_prices
		WHERE tariff_id = $1 AND location_id = $2
		ORDER BY id
	`, tariffID, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PriceOverride
	for rows.Next() {
		var (
			o     domain.PriceOverride
			price int64
		)
		if err := rows.Scan(&o.TariffID, &o.LocationID, &o.CategoryID, &price); err != nil {
			return nil, err
		}
		o.Price = domain.Money(price)
		out = append(out, o)
	}
	return out, rows.Err()
}

// CategoryName returns a category's display name.
func (r *PostgresCatalogRepository) CategoryName(ctx context.Context, id uuid.UUID) (string, bool, error) {
	return r.name(ctx, `SELECT name FROM categories WHERE id = $1`, id)
}

// LocationName returns a location's display name.
func (r *PostgresCatalogRepository) LocationName(ctx context.Context, id uuid.UUID) (string, bool, error) {
	return r.name(ctx, `SELECT name FROM locations WHERE id = $1`, id)
}

func (r *PostgresCatalogRepository) name(ctx context.Context, query string, id uuid.UUID) (string, bool, error) {
	var name string
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, id).Scan(&name)
	if err != nil {
		if database.IsNoRows(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return name, true, nil
}

// IsTrialUsed reports whether the user already consumed the free trial.
func (r *PostgresCatalogRepository) IsTrialUsed(ctx context.Context, userID uuid.UUID) (bool, error) {
	var used bool
	err := sharedPersistence.Executor(ctx, r.pool).
		QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_trials WHERE user_id = $1)`, userID).
		Scan(&used)
	return used, err
}

// MarkTrialUsed records trial consumption. Repeated calls keep the first timestamp.
func (r *PostgresCatalogRepository) MarkTrialUsed(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx,
		`INSERT INTO user_trials (user_id, used_at) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, at,
	)
	if err != nil {
		return fmt.Errorf("mark trial used: %w", err)
	}
	return nil
}

// IsAdmin reports whether the user is listed as an administrator.
func (r *PostgresCatalogRepository) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	var ok bool
	err := sharedPersistence.Executor(ctx, r.pool).
		QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM admins WHERE user_id = $1)`, userID).
		Scan(&ok)
	return ok, err
}
