package persistence

import "github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"

var (
	_ domain.Repository        = (*PostgresSubscriptionRepository)(nil)
	_ domain.HistoryRepository = (*PostgresHistoryRepository)(nil)
	_ domain.CatalogRepository = (*PostgresCatalogRepository)(nil)
	_ domain.ScopeDirectory    = (*PostgresCatalogRepository)(nil)
	_ domain.TrialRegistry     = (*PostgresCatalogRepository)(nil)
	_ domain.RoleResolver      = (*PostgresCatalogRepository)(nil)

	_ domain.Repository        = (*SQLiteSubscriptionRepository)(nil)
	_ domain.HistoryRepository = (*SQLiteHistoryRepository)(nil)
	_ domain.CatalogRepository = (*SQLiteCatalogRepository)(nil)
	_ domain.ScopeDirectory    = (*SQLiteCatalogRepository)(nil)
	_ domain.TrialRegistry     = (*SQLiteCatalogRepository)(nil)
	_ domain.RoleResolver      = (*SQLiteCatalogRepository)(nil)
)
