// Package postgres opens the pgx pool and registers the postgres driver.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/database"
)

func init() {
	database.Register(database.DriverPostgres, func(ctx context.Context, cfg database.Config) (database.Connection, error) {
		return Open(ctx, cfg)
	})
}

// Connection owns a pgx pool.
type Connection struct {
	pool *pgxpool.Pool
}

// Open builds the pool. It does not ping; callers decide how eager to be.
func Open(ctx context.Context, cfg database.Config) (*Connection, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgres needs DATABASE_URL")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = convert.Int32(cfg.MaxConns)
	}
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	return &Connection{pool: pool}, nil
}

func (c *Connection) Pool() *pgxpool.Pool { return c.pool }

func (c *Connection) Driver() database.Driver { return database.DriverPostgres }

func (c *Connection) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *Connection) Close() error {
	c.pool.Close()
	return nil
}
