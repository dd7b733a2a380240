package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string
	// AdminID is the acting administrator for CLI commands.
	AdminID string

	// Database
	DatabaseURL      string
	DatabaseDriver   string
	DatabaseMaxConns int
	SQLitePath       string
	LocalMode        bool

	// Redis
	RedisURL        string
	CatalogCacheTTL time.Duration

	// RabbitMQ
	RabbitMQURL string

	// Outbox
	OutboxPollInterval    time.Duration
	OutboxBatchSize       int
	OutboxMaxRetries      int
	OutboxStatsInterval   time.Duration
	OutboxRetentionDays   int
	OutboxCleanupInterval time.Duration
	OutboxRelayEnabled    bool

	// Worker
	WorkerHealthAddr  string
	SweeperSchedule   string
	SweeperBatchSize  int
	NotifierSchedule  string
	SchedulerTimezone string

	// Publisher circuit breaker
	PublisherBreakerMaxFailures int
	PublisherBreakerTimeout     time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		AdminID:  getEnv("ESTATECRM_ADMIN_ID", ""),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseDriver:   getEnv("DATABASE_DRIVER", ""),
		DatabaseMaxConns: getIntEnv("DATABASE_MAX_CONNS", 10),
		SQLitePath:       getEnv("SQLITE_PATH", defaultSQLitePath()),

		RedisURL:        getEnv("REDIS_URL", ""),
		CatalogCacheTTL: getDurationEnv("CATALOG_CACHE_TTL", 5*time.Minute),
		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),

		OutboxPollInterval:    getDurationEnv("OUTBOX_POLL_INTERVAL", 100*time.Millisecond),
		OutboxBatchSize:       getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:      getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxStatsInterval:   getDurationEnv("OUTBOX_STATS_INTERVAL", 30*time.Second),
		OutboxRetentionDays:   getIntEnv("OUTBOX_RETENTION_DAYS", 14),
		OutboxCleanupInterval: getDurationEnv("OUTBOX_CLEANUP_INTERVAL", 24*time.Hour),
		OutboxRelayEnabled:    getBoolEnv("OUTBOX_RELAY_ENABLED", true),

		WorkerHealthAddr:  getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
		SweeperSchedule:   getEnv("SWEEPER_SCHEDULE", "@every 5m"),
		SweeperBatchSize:  getIntEnv("SWEEPER_BATCH_SIZE", 100),
		NotifierSchedule:  getEnv("NOTIFIER_SCHEDULE", "@every 5m"),
		SchedulerTimezone: getEnv("SCHEDULER_TIMEZONE", "UTC"),

		PublisherBreakerMaxFailures: getIntEnv("PUBLISHER_BREAKER_MAX_FAILURES", 5),
		PublisherBreakerTimeout:     getDurationEnv("PUBLISHER_BREAKER_TIMEOUT", 30*time.Second),
	}

	// Without a Postgres URL the service runs against the local SQLite file.
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = "postgres"
		if cfg.DatabaseURL == "" {
			cfg.DatabaseDriver = "sqlite"
		}
	}
	cfg.LocalMode = cfg.DatabaseDriver == "sqlite"

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		result = multierror.Append(result, fmt.Errorf("DATABASE_DRIVER: unsupported driver %q", c.DatabaseDriver))
	}
	if c.DatabaseDriver == "postgres" && c.DatabaseURL == "" {
		result = multierror.Append(result, fmt.Errorf("DATABASE_URL: required for postgres"))
	}
	if c.AdminID != "" {
		if _, err := uuid.Parse(c.AdminID); err != nil {
			result = multierror.Append(result, fmt.Errorf("ESTATECRM_ADMIN_ID: %w", err))
		}
	}
	if _, err := time.LoadLocation(c.SchedulerTimezone); err != nil {
		result = multierror.Append(result, fmt.Errorf("SCHEDULER_TIMEZONE: %w", err))
	}
	if c.SweeperBatchSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("SWEEPER_BATCH_SIZE: must be positive"))
	}
	if strings.TrimSpace(c.SweeperSchedule) == "" {
		result = multierror.Append(result, fmt.Errorf("SWEEPER_SCHEDULE: required"))
	}
	return result.ErrorOrNil()
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Location returns the scheduler time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SchedulerTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".estatecrm", "data.db")
	}
	return filepath.Join(home, ".estatecrm", "data.db")
}
