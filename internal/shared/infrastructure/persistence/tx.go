package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoTransaction is returned when Commit or Rollback finds no transaction
// in the context.
var ErrNoTransaction = errors.New("no transaction in context")

// txScope is the transaction carried by a context. Only the unit that opened
// it may commit or roll it back; nested units join it.
type txScope[T any] struct {
	tx    T
	owned bool
}

type scopeKey[T any] struct{}

func withScope[T any](ctx context.Context, tx T, owned bool) context.Context {
	return context.WithValue(ctx, scopeKey[T]{}, txScope[T]{tx: tx, owned: owned})
}

func scopeFrom[T any](ctx context.Context) (txScope[T], bool) {
	s, ok := ctx.Value(scopeKey[T]{}).(txScope[T])
	return s, ok
}

// txUnit implements UnitOfWork for one driver's transaction type.
type txUnit[T any] struct {
	begin    func(ctx context.Context) (T, error)
	commit   func(ctx context.Context, tx T) error
	rollback func(ctx context.Context, tx T) error
}

func (u txUnit[T]) Begin(ctx context.Context) (context.Context, error) {
	if s, ok := scopeFrom[T](ctx); ok {
		return withScope(ctx, s.tx, false), nil
	}
	tx, err := u.begin(ctx)
	if err != nil {
		return nil, err
	}
	return withScope(ctx, tx, true), nil
}

func (u txUnit[T]) Commit(ctx context.Context) error {
	s, ok := scopeFrom[T](ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !s.owned {
		return nil
	}
	return u.commit(ctx, s.tx)
}

func (u txUnit[T]) Rollback(ctx context.Context) error {
	s, ok := scopeFrom[T](ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !s.owned {
		return nil
	}
	return u.rollback(ctx, s.tx)
}

// PostgresUnitOfWork opens pgx transactions.
type PostgresUnitOfWork struct {
	txUnit[pgx.Tx]
}

// NewPostgresUnitOfWork creates a unit of work over pool.
func NewPostgresUnitOfWork(pool *pgxpool.Pool) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{txUnit[pgx.Tx]{
		begin:    func(ctx context.Context) (pgx.Tx, error) { return pool.Begin(ctx) },
		commit:   func(ctx context.Context, tx pgx.Tx) error { return tx.Commit(ctx) },
		rollback: func(ctx context.Context, tx pgx.Tx) error { return tx.Rollback(ctx) },
	}}
}

// SQLiteUnitOfWork opens database/sql transactions.
type SQLiteUnitOfWork struct {
	txUnit[*sql.Tx]
}

// NewSQLiteUnitOfWork creates a unit of work over db.
func NewSQLiteUnitOfWork(db *sql.DB) *SQLiteUnitOfWork {
	return &SQLiteUnitOfWork{txUnit[*sql.Tx]{
		begin:    func(ctx context.Context) (*sql.Tx, error) { return db.BeginTx(ctx, nil) },
		commit:   func(_ context.Context, tx *sql.Tx) error { return tx.Commit() },
		rollback: func(_ context.Context, tx *sql.Tx) error { return tx.Rollback() },
	}}
}

// PostgresTx returns the pgx transaction in ctx.
func PostgresTx(ctx context.Context) (pgx.Tx, bool) {
	s, ok := scopeFrom[pgx.Tx](ctx)
	return s.tx, ok
}

// SQLiteTx returns the SQLite transaction in ctx.
func SQLiteTx(ctx context.Context) (*sql.Tx, bool) {
	s, ok := scopeFrom[*sql.Tx](ctx)
	return s.tx, ok
}

// DBExecutor is satisfied by both pgxpool.Pool and pgx.Tx.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Executor returns the transaction in ctx, or pool outside a unit of work.
func Executor(ctx context.Context, pool *pgxpool.Pool) DBExecutor {
	if tx, ok := PostgresTx(ctx); ok {
		return tx
	}
	return pool
}

// SQLiteQuerier is satisfied by both *sql.DB and *sql.Tx.
type SQLiteQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteExecutor returns the transaction in ctx, or db outside a unit of work.
func SQLiteExecutor(ctx context.Context, db *sql.DB) SQLiteQuerier {
	if tx, ok := SQLiteTx(ctx); ok {
		return tx
	}
	return db
}
