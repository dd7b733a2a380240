package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	internalApp "github.com/felixgeelhaar/estatecrm/internal/app"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/infrastructure/cache"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/audit"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/catalog"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/workers"
	"github.com/felixgeelhaar/estatecrm/pkg/observability"
	"github.com/google/uuid"
)

// App holds the CLI application dependencies.
type App struct {
	// Command Handlers
	CreateSubscriptionHandler   *commands.CreateSubscriptionHandler
	RequestSubscriptionHandler  *commands.RequestSubscriptionHandler
	ActivateSubscriptionHandler *commands.ActivateSubscriptionHandler
	ExtendSubscriptionHandler   *commands.ExtendSubscriptionHandler
	CancelSubscriptionHandler   *commands.CancelSubscriptionHandler
	ToggleEnabledHandler        *commands.ToggleEnabledHandler
	UpdateTariffHandler         *commands.UpdateTariffHandler
	RequestExtensionHandler     *commands.RequestExtensionHandler

	// Query Handlers
	ListSubscriptionsHandler *queries.ListSubscriptionsHandler
	GetSubscriptionHandler   *queries.GetSubscriptionHandler
	AccessGate               *queries.AccessGate

	Catalog      *catalog.Catalog
	CatalogCache *cache.RedisCatalogCache
	AuditLog     *audit.Log
	Sweeper      *workers.ExpirationSweeper
	Health       *observability.HealthRegistry

	// AdminID is the acting administrator (ESTATECRM_ADMIN_ID or --admin).
	AdminID uuid.UUID

	// Now is the clock used for sweeps and access checks.
	Now func() time.Time
}

// NewApp creates a CLI application from a wired container.
func NewApp(c *internalApp.Container) *App {
	a := &App{
		CreateSubscriptionHandler:   c.CreateSubscriptionHandler,
		RequestSubscriptionHandler:  c.RequestSubscriptionHandler,
		ActivateSubscriptionHandler: c.ActivateSubscriptionHandler,
		ExtendSubscriptionHandler:   c.ExtendSubscriptionHandler,
		CancelSubscriptionHandler:   c.CancelSubscriptionHandler,
		ToggleEnabledHandler:        c.ToggleEnabledHandler,
		UpdateTariffHandler:         c.UpdateTariffHandler,
		RequestExtensionHandler:     c.RequestExtensionHandler,
		ListSubscriptionsHandler:    c.ListSubscriptionsHandler,
		GetSubscriptionHandler:      c.GetSubscriptionHandler,
		AccessGate:                  c.AccessGate,
		Catalog:                     c.Catalog,
		CatalogCache:                c.CatalogCache,
		AuditLog:                    c.AuditLog,
		Sweeper:                     c.Sweeper,
		Health:                      c.HealthRegistry(),
		Now:                         func() time.Time { return time.Now().UTC() },
	}
	if c.Config != nil && c.Config.AdminID != "" {
		if id, err := uuid.Parse(c.Config.AdminID); err == nil {
			a.AdminID = id
		}
	}
	return a
}

// SetAdminID overrides the acting administrator.
func (a *App) SetAdminID(id uuid.UUID) {
	a.AdminID = id
}

// Clock returns the current time from the configured clock.
func (a *App) Clock() time.Time {
	if a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now()
}

// ResolveTariff accepts a tariff UUID or a tariff code such as "premium_30".
func (a *App) ResolveTariff(ctx context.Context, ref string) (uuid.UUID, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return uuid.Nil, fmt.Errorf("tariff is required")
	}
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}
	if a.Catalog == nil {
		return uuid.Nil, fmt.Errorf("tariff %q is not a UUID and no catalog is available", ref)
	}
	tariff, err := a.Catalog.TariffByCode(ctx, ref)
	if err != nil {
		return uuid.Nil, err
	}
	return tariff.ID, nil
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
