package app

import (
	"context"
	"fmt"
	"log/slog"

	sharedApplication "github.com/felixgeelhaar/estatecrm/internal/shared/application"
	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/audit"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/catalog"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/queries"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/subscribers"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/application/workers"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/domain"
	"github.com/felixgeelhaar/estatecrm/internal/subscriptions/infrastructure/cache"
	"github.com/felixgeelhaar/estatecrm/pkg/config"
	"github.com/felixgeelhaar/estatecrm/pkg/observability"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics observability.Metrics

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	// Repositories
	SubscriptionRepo domain.Repository
	HistoryRepo      domain.HistoryRepository
	CatalogStore     CatalogStore
	CatalogCache     *cache.RedisCatalogCache
	Outbox       outbox.Store
	UnitOfWork       sharedApplication.UnitOfWork

	// Application services
	Catalog  *catalog.Catalog
	AuditLog *audit.Log

	// Event delivery
	EventPublisher  eventbus.Publisher
	Breaker         *eventbus.BreakerPublisher
	LocalBus        *eventbus.LocalBus
	OutboxRelay *outbox.Relay
	Notifications   *subscribers.NotificationSubscriber

	// Command Handlers
	CreateSubscriptionHandler   *commands.CreateSubscriptionHandler
	RequestSubscriptionHandler  *commands.RequestSubscriptionHandler
	ActivateSubscriptionHandler *commands.ActivateSubscriptionHandler
	ExtendSubscriptionHandler   *commands.ExtendSubscriptionHandler
	CancelSubscriptionHandler   *commands.CancelSubscriptionHandler
	ExpireSubscriptionHandler   *commands.ExpireSubscriptionHandler
	ToggleEnabledHandler        *commands.ToggleEnabledHandler
	UpdateTariffHandler         *commands.UpdateTariffHandler
	RequestExtensionHandler     *commands.RequestExtensionHandler
	RecordReminderHandler       *commands.RecordReminderHandler

	// Query Handlers
	AccessGate               *queries.AccessGate
	ListSubscriptionsHandler *queries.ListSubscriptionsHandler
	GetSubscriptionHandler   *queries.GetSubscriptionHandler

	// Workers
	Sweeper        *workers.ExpirationSweeper
	ExpiryNotifier *workers.ExpiryNotifier
}

// Option customizes container construction.
type Option func(*Container)

// WithMetrics sets the metrics sink used by workers and the outbox relay.
func WithMetrics(m observability.Metrics) Option {
	return func(c *Container) {
		if m != nil {
			c.Metrics = m
		}
	}
}

// NewContainer creates and wires all dependencies.
// Without DATABASE_URL the container runs against the local SQLite file.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}

	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	conn, err := database.Open(ctx, database.Config{
		Driver:     database.Driver(cfg.DatabaseDriver),
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
		MaxConns:   cfg.DatabaseMaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("connected to database", "driver", c.DBDriver)

	storage, err := OpenStorage(ctx, conn)
	if err != nil {
		return nil, err
	}
	c.SubscriptionRepo = storage.Subscriptions
	c.HistoryRepo = storage.History
	c.CatalogStore = storage.Catalog
	c.Outbox = storage.Outbox
	c.UnitOfWork = storage.UnitOfWork

	if err := c.initRedis(ctx); err != nil {
		return nil, err
	}

	var catalogRepo domain.CatalogRepository = c.CatalogStore
	if c.RedisClient != nil {
		c.CatalogCache = cache.NewRedisCatalogCache(c.CatalogStore, c.RedisClient, cfg.CatalogCacheTTL, logger)
		catalogRepo = c.CatalogCache
	}

	c.Catalog = catalog.New(catalogRepo)
	c.AuditLog = audit.NewLog(c.HistoryRepo, c.Catalog, c.CatalogStore)

	c.initHandlers()

	if err := c.initPublisher(); err != nil {
		return nil, err
	}

	c.OutboxRelay = outbox.NewRelay(c.Outbox, c.EventPublisher, outbox.RelayConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		MaxAttempts:  cfg.OutboxMaxRetries,
	}, outbox.WithLogger(logger), outbox.WithMetrics(c.Metrics))

	c.Sweeper = workers.NewExpirationSweeper(
		c.SubscriptionRepo,
		c.ExpireSubscriptionHandler,
		c.Metrics,
		workers.ExpirationSweeperConfig{BatchSize: cfg.SweeperBatchSize},
		logger,
	)
	c.ExpiryNotifier = workers.NewExpiryNotifier(
		c.SubscriptionRepo,
		c.RecordReminderHandler,
		c.Metrics,
		workers.ExpiryNotifierConfig{BatchSize: cfg.SweeperBatchSize},
		logger,
	)

	logger.Info("container initialized",
		"driver", c.DBDriver,
		"redis", c.RedisClient != nil,
		"local_mode", cfg.LocalMode,
	)

	ok = true
	return c, nil
}

// initRedis connects to Redis when configured. Outside development a broken
// Redis is fatal; in development the catalog is read straight from the database.
func (c *Container) initRedis(ctx context.Context) error {
	if c.Config.RedisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, catalog cache disabled", "error", err)
		return nil
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, catalog cache disabled", "error", err)
		return nil
	}

	c.RedisClient = client
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) initHandlers() {
	deps := commands.Deps{
		Repo:   c.SubscriptionRepo,
		Audit:  c.AuditLog,
		Outbox: c.Outbox,
		UoW:    c.UnitOfWork,
	}

	c.CreateSubscriptionHandler = commands.NewCreateSubscriptionHandler(deps, c.Catalog)
	c.RequestSubscriptionHandler = commands.NewRequestSubscriptionHandler(deps, c.Catalog, c.CatalogStore)
	c.ActivateSubscriptionHandler = commands.NewActivateSubscriptionHandler(deps, c.Catalog, c.CatalogStore)
	c.ExtendSubscriptionHandler = commands.NewExtendSubscriptionHandler(deps, c.Catalog)
	c.CancelSubscriptionHandler = commands.NewCancelSubscriptionHandler(deps)
	c.ExpireSubscriptionHandler = commands.NewExpireSubscriptionHandler(deps)
	c.ToggleEnabledHandler = commands.NewToggleEnabledHandler(deps)
	c.UpdateTariffHandler = commands.NewUpdateTariffHandler(deps, c.Catalog)
	c.RequestExtensionHandler = commands.NewRequestExtensionHandler(deps, c.Catalog)
	c.RecordReminderHandler = commands.NewRecordReminderHandler(deps, c.Catalog)

	c.AccessGate = queries.NewAccessGate(c.SubscriptionRepo, c.CatalogStore)
	c.ListSubscriptionsHandler = queries.NewListSubscriptionsHandler(c.SubscriptionRepo)
	c.GetSubscriptionHandler = queries.NewGetSubscriptionHandler(c.SubscriptionRepo)
}

// initPublisher picks RabbitMQ when configured, the in-process bus in local
// mode and a discarding publisher otherwise, then wraps the choice in a circuit breaker.
func (c *Container) initPublisher() error {
	cfg := c.Config
	c.Notifications = subscribers.NewNotificationSubscriber(subscribers.NewLogNotifier(c.Logger), c.Metrics, c.Logger)

	var next eventbus.Publisher
	if cfg.RabbitMQURL != "" {
		publisher, err := eventbus.NewAMQPPublisher(cfg.RabbitMQURL, c.Logger)
		switch {
		case err == nil:
			next = publisher
		case cfg.IsDevelopment():
			c.Logger.Warn("RabbitMQ not available, falling back", "error", err)
		default:
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
	}

	if next == nil {
		if cfg.LocalMode {
			c.LocalBus = eventbus.NewLocalBus(c.Logger)
			c.LocalBus.Register(c.Notifications)
			next = c.LocalBus
		} else {
			next = eventbus.NewDiscardPublisher(c.Logger)
		}
	}

	c.Breaker = eventbus.NewBreakerPublisher(next, eventbus.BreakerConfig{
		Name:        "outbox-publisher",
		MaxFailures: convert.Uint32(cfg.PublisherBreakerMaxFailures),
		Timeout:     cfg.PublisherBreakerTimeout,
	}, c.Logger)
	c.EventPublisher = c.Breaker
	return nil
}

// HealthRegistry builds health checks for the container's backing services.
func (c *Container) HealthRegistry() *observability.HealthRegistry {
	registry := observability.NewHealthRegistry()
	if c.DBConn != nil {
		registry.Register("database", observability.PingChecker("database", observability.HealthStatusUnhealthy, c.DBConn.Ping))
	}
	if c.RedisClient != nil {
		registry.Register("redis", observability.PingChecker("redis", observability.HealthStatusDegraded, func(ctx context.Context) error {
			return c.RedisClient.Ping(ctx).Err()
		}))
	}
	if c.Breaker != nil {
		registry.Register("publisher", observability.PingChecker("publisher", observability.HealthStatusDegraded, func(context.Context) error {
			if state := c.Breaker.State(); state == "open" {
				return fmt.Errorf("publisher circuit %s", state)
			}
			return nil
		}))
	}
	return registry
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.OutboxRelay != nil {
		c.OutboxRelay.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err, "driver", c.DBDriver)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DBDriver)
		}
	}
}
