package outbox

import (
	"context"
	"time"
)

// Store persists staged messages. Stage joins the caller's unit of work when
// the context carries one.
type Store interface {
	Stage(ctx context.Context, msgs []*Message) error
	// Due returns pending messages whose next attempt is not after now, oldest first.
	Due(ctx context.Context, now time.Time, limit int) ([]*Message, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	// Retry bumps the attempt counter and parks the message until at.
	Retry(ctx context.Context, id int64, reason string, at time.Time) error
	MarkDead(ctx context.Context, id int64, reason string, at time.Time) error
	// Purge deletes messages published before the cutoff.
	Purge(ctx context.Context, publishedBefore time.Time) (int64, error)
	Backlog(ctx context.Context) (Backlog, error)
}

// Backlog summarises what the relay still owes the broker.
type Backlog struct {
	Pending int
	Dead    int
	Oldest  *time.Time
}
