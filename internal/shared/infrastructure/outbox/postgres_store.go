package outbox

import (
	"context"
	"time"

	sharedPersistence "github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgStageSQL = `
	INSERT INTO outbox (event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata, created_at)
	VALUES ($1, $2, $3, $4, $4, $5, $6, $7)
	RETURNING id`

const pgMessageColumns = `id, event_id, aggregate_type, aggregate_id, routing_key, payload, metadata, created_at,
	retry_count, COALESCE(last_error, ''), next_retry_at, published_at, dead_lettered_at, COALESCE(dead_letter_reason, '')`

// PostgresStore keeps the outbox in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Stage inserts msgs as one pipelined batch, inside the caller's transaction
// when there is one and in a private transaction otherwise.
func (s *PostgresStore) Stage(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if tx, ok := sharedPersistence.PostgresTx(ctx); ok {
		return stageBatch(ctx, tx, msgs)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return stageBatch(ctx, tx, msgs)
	})
}

func stageBatch(ctx context.Context, db sharedPersistence.DBExecutor, msgs []*Message) error {
	batch := &pgx.Batch{}
	for _, msg := range msgs {
		msg := msg
		batch.Queue(pgStageSQL,
			msg.EventID, msg.AggregateType, msg.AggregateID, msg.RoutingKey,
			msg.Payload, msg.Metadata, msg.CreatedAt,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&msg.ID)
		})
	}
	return db.SendBatch(ctx, batch).Close()
}

func (s *PostgresStore) Due(ctx context.Context, now time.Time, limit int) ([]*Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgMessageColumns+`
		FROM outbox
		WHERE published_at IS NULL AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY created_at, id
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Message, error) {
		var m Message
		err := row.Scan(
			&m.ID, &m.EventID, &m.AggregateType, &m.AggregateID, &m.RoutingKey,
			&m.Payload, &m.Metadata, &m.CreatedAt,
			&m.Attempts, &m.LastError, &m.NextAttemptAt, &m.PublishedAt, &m.DeadAt, &m.DeadReason,
		)
		return &m, err
	})
}

func (s *PostgresStore) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET published_at = $2 WHERE id = $1`, id, at)
	return err
}

func (s *PostgresStore) Retry(ctx context.Context, id int64, reason string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = $2, next_retry_at = $3
		WHERE id = $1`, id, reason, at)
	return err
}

func (s *PostgresStore) MarkDead(ctx context.Context, id int64, reason string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = $2, dead_letter_reason = $2, dead_lettered_at = $3
		WHERE id = $1`, id, reason, at)
	return err
}

func (s *PostgresStore) Purge(ctx context.Context, publishedBefore time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, publishedBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Backlog(ctx context.Context) (Backlog, error) {
	var b Backlog
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE published_at IS NULL AND dead_lettered_at IS NULL),
			COUNT(*) FILTER (WHERE dead_lettered_at IS NOT NULL),
			MIN(created_at) FILTER (WHERE published_at IS NULL AND dead_lettered_at IS NULL)
		FROM outbox`).Scan(&b.Pending, &b.Dead, &b.Oldest)
	return b, err
}
