// Package database opens the configured backend. Driver packages register
// themselves from init, so importing one of them is what enables it.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Driver names a storage backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

// Config selects and tunes the backend.
type Config struct {
	// Driver is resolved from URL when empty or "auto".
	Driver     Driver
	URL        string
	SQLitePath string
	// MaxConns caps the Postgres pool; zero keeps the pgx default.
	MaxConns int
}

// Connection is an open backend. Concrete connections expose their native
// handle (a pgx pool or a *sql.DB) for repositories.
type Connection interface {
	Driver() Driver
	Ping(ctx context.Context) error
	Close() error
}

// Opener opens a Connection for one driver.
type Opener func(ctx context.Context, cfg Config) (Connection, error)

var (
	openersMu sync.RWMutex
	openers   = map[Driver]Opener{}
)

// Register makes a driver available to Open.
func Register(d Driver, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[d] = open
}

// Open resolves the driver and opens it.
func Open(ctx context.Context, cfg Config) (Connection, error) {
	d, err := ResolveDriver(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, err
	}
	openersMu.RLock()
	open, ok := openers[d]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("database driver %q is not linked in", d)
	}
	cfg.Driver = d
	return open(ctx, cfg)
}

// ResolveDriver honours an explicit driver and otherwise infers one from the
// URL. No URL at all means the zero-config SQLite file.
func ResolveDriver(explicit Driver, rawURL string) (Driver, error) {
	switch strings.ToLower(string(explicit)) {
	case string(DriverPostgres), "postgresql", "pg":
		return DriverPostgres, nil
	case string(DriverSQLite), "sqlite3":
		return DriverSQLite, nil
	case "", "auto":
	default:
		return "", fmt.Errorf("unsupported database driver %q", explicit)
	}

	if rawURL == "" {
		return DriverSQLite, nil
	}
	switch ext := strings.ToLower(filepath.Ext(rawURL)); ext {
	case ".db", ".sqlite", ".sqlite3":
		return DriverSQLite, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		return DriverPostgres, nil
	case "sqlite", "file":
		return DriverSQLite, nil
	}
	return "", fmt.Errorf("cannot infer database driver from url scheme %q", u.Scheme)
}

// DefaultSQLitePath is ~/.estatecrm/estatecrm.db, or a file in the working
// directory when there is no home.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "estatecrm.db"
	}
	return filepath.Join(home, ".estatecrm", "estatecrm.db")
}

// IsNoRows matches the not-found sentinel of either driver.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}
