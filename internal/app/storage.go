package app

import (
	"context"
	"fmt"

	sharedApplication "github.com/felixgeelhaar/estatecrm/internal/shared/application"
	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/database/postgres"
	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/persistence"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/infrastructure/persistence"
)

// CatalogStore is the catalog table set: tariffs, scopes, trials and admins.
type CatalogStore interface {
	domain.CatalogRepository
	domain.ScopeDirectory
	domain.TrialRegistry
	domain.RoleResolver
}

// Storage is every repository bound to one migrated connection.
type Storage struct {
	Subscriptions domain.Repository
	History       domain.HistoryRepository
	Catalog       CatalogStore
	Outbox        outbox.Store
	UnitOfWork    sharedApplication.UnitOfWork
}

// OpenStorage applies the embedded migrations and builds the repositories for
// the connection's driver.
func OpenStorage(ctx context.Context, conn database.Connection) (*Storage, error) {
	switch c := conn.(type) {
	case *postgres.Connection:
		pool := c.Pool()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return &Storage{
			Subscriptions: persistence.NewPostgresSubscriptionRepository(pool),
			History:       persistence.NewPostgresHistoryRepository(pool),
			Catalog:       persistence.NewPostgresCatalogRepository(pool),
			Outbox:        outbox.NewPostgresStore(pool),
			UnitOfWork:    sharedPersistence.NewPostgresUnitOfWork(pool),
		}, nil

	case *sqlite.Connection:
		db := c.DB()
		if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return &Storage{
			Subscriptions: persistence.NewSQLiteSubscriptionRepository(db),
			History:       persistence.NewSQLiteHistoryRepository(db),
			Catalog:       persistence.NewSQLiteCatalogRepository(db),
			Outbox:        outbox.NewSQLiteStore(db),
			UnitOfWork:    sharedPersistence.NewSQLiteUnitOfWork(db),
		}, nil

	default:
		return nil, fmt.Errorf("unsupported driver: %s", conn.Driver())
	}
}
