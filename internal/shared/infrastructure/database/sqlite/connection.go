// Package sqlite opens the local database file and registers the sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/database"
)

func init() {
	database.Register(database.DriverSQLite, func(ctx context.Context, cfg database.Config) (database.Connection, error) {
		return Open(ctx, cfg)
	})
}

// pragmas applied to every connection. WAL lets readers run beside the single
// writer; busy_timeout makes that writer wait instead of failing on a lock.
var pragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
}

// Connection owns a *sql.DB limited to one open connection, since SQLite
// serialises writers anyway.
type Connection struct {
	db   *sql.DB
	path string
}

func Open(ctx context.Context, cfg database.Config) (*Connection, error) {
	raw := cfg.SQLitePath
	if raw == "" {
		raw = strings.TrimPrefix(cfg.URL, "sqlite://")
	}
	if raw == "" {
		raw = database.DefaultSQLitePath()
	}
	path, err := cleanPath(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid SQLite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return &Connection{db: db, path: path}, nil
}

func dsn(path string) string {
	var b strings.Builder
	b.WriteString(path)
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	for _, p := range pragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// cleanPath rejects shell metacharacters and returns an absolute path with
// symlinks resolved when the file already exists.
func cleanPath(path string) (string, error) {
	if i := strings.IndexAny(path, ";&|$`(){}<>!\n\r"); i >= 0 {
		return "", fmt.Errorf("forbidden character %q in %s", path[i], path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	switch {
	case err == nil:
		return resolved, nil
	case os.IsNotExist(err):
		return abs, nil
	default:
		return "", fmt.Errorf("resolve %s: %w", abs, err)
	}
}

func (c *Connection) DB() *sql.DB { return c.db }

// Path is the resolved database file.
func (c *Connection) Path() string { return c.path }

func (c *Connection) Driver() database.Driver { return database.DriverSQLite }

func (c *Connection) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *Connection) Close() error { return c.db.Close() }
