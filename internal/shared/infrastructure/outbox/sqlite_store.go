package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sharedPersistence "github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

const sqliteMessageColumns = `id, event_id, aggregate_type, aggregate_id, routing_key, payload, COALESCE(metadata, ''), created_at,
	retry_count, COALESCE(last_error, ''), next_retry_at, published_at, dead_lettered_at, COALESCE(dead_letter_reason, '')`

// SQLiteStore keeps the outbox in the local database file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Stage(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if tx, ok := sharedPersistence.SQLiteTx(ctx); ok {
		return sqliteStage(ctx, tx, msgs)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := sqliteStage(ctx, tx, msgs); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func sqliteStage(ctx context.Context, tx *sql.Tx, msgs []*Message) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outbox (event_id, aggregate_type, aggregate_id, event_type, routing_key, payload, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, msg := range msgs {
		var metadata sql.NullString
		if len(msg.Metadata) > 0 {
			metadata = sql.NullString{String: string(msg.Metadata), Valid: true}
		}
		res, err := stmt.ExecContext(ctx,
			msg.EventID.String(), msg.AggregateType, msg.AggregateID.String(),
			msg.RoutingKey, msg.RoutingKey, string(msg.Payload), metadata,
			sharedPersistence.FormatSQLiteTime(msg.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("stage %s: %w", msg.RoutingKey, err)
		}
		if msg.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Due(ctx context.Context, now time.Time, limit int) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteMessageColumns+`
		FROM outbox
		WHERE published_at IS NULL AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at, id
		LIMIT ?`, sharedPersistence.FormatSQLiteTime(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

func scanSQLiteMessage(rows *sql.Rows) (*Message, error) {
	var (
		m                                 Message
		eventID, aggregateID, createdAt   string
		payload, metadata                 string
		nextAttempt, published, deadLater sql.NullString
	)
	err := rows.Scan(
		&m.ID, &eventID, &m.AggregateType, &aggregateID, &m.RoutingKey, &payload, &metadata, &createdAt,
		&m.Attempts, &m.LastError, &nextAttempt, &published, &deadLater, &m.DeadReason,
	)
	if err != nil {
		return nil, err
	}
	if m.EventID, err = uuid.Parse(eventID); err != nil {
		return nil, fmt.Errorf("outbox message %d: event id: %w", m.ID, err)
	}
	if m.AggregateID, err = uuid.Parse(aggregateID); err != nil {
		return nil, fmt.Errorf("outbox message %d: aggregate id: %w", m.ID, err)
	}
	if m.CreatedAt, err = sharedPersistence.ParseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	m.Payload = []byte(payload)
	if metadata != "" {
		m.Metadata = []byte(metadata)
	}
	for _, f := range []struct {
		src sql.NullString
		dst **time.Time
	}{{nextAttempt, &m.NextAttemptAt}, {published, &m.PublishedAt}, {deadLater, &m.DeadAt}} {
		if *f.dst, err = sharedPersistence.ParseNullSQLiteTime(f.src); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func (s *SQLiteStore) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE outbox SET published_at = ? WHERE id = ?`,
		sharedPersistence.FormatSQLiteTime(at), id)
	return err
}

func (s *SQLiteStore) Retry(ctx context.Context, id int64, reason string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?`, reason, sharedPersistence.FormatSQLiteTime(at), id)
	return err
}

func (s *SQLiteStore) MarkDead(ctx context.Context, id int64, reason string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = ?, dead_letter_reason = ?, dead_lettered_at = ?
		WHERE id = ?`, reason, reason, sharedPersistence.FormatSQLiteTime(at), id)
	return err
}

func (s *SQLiteStore) Purge(ctx context.Context, publishedBefore time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`,
		sharedPersistence.FormatSQLiteTime(publishedBefore))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Backlog(ctx context.Context) (Backlog, error) {
	var (
		b      Backlog
		oldest sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN published_at IS NULL AND dead_lettered_at IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN dead_lettered_at IS NOT NULL THEN 1 ELSE 0 END), 0),
			MIN(CASE WHEN published_at IS NULL AND dead_lettered_at IS NULL THEN created_at END)
		FROM outbox`).Scan(&b.Pending, &b.Dead, &oldest)
	if err != nil {
		return b, err
	}
	b.Oldest, err = sharedPersistence.ParseNullSQLiteTime(oldest)
	return b, err
}
