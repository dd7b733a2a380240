package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/estatecrm/pkg/observability"
)

// RelayConfig tunes the polling relay.
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxAttempts is the number of failed publishes after which a message is dead-lettered.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		PollInterval: 100 * time.Millisecond,
		BatchSize:    100,
		MaxAttempts:  5,
		BackoffBase:  time.Second,
		BackoffMax:   time.Minute,
	}
}

// Pass is the outcome of one relay pass.
type Pass struct {
	Published int
	Retried   int
	Dead      int
	// Deferred is set when the publisher refused work and the rest of the batch was left for later.
	Deferred bool
}

// Stats is a snapshot of the relay since start.
type Stats struct {
	Running     bool
	Published   uint64
	Retried     uint64
	Dead        uint64
	Lag         time.Duration
	LastError   string
	LastErrorAt *time.Time
	LastPassAt  *time.Time
}

// Relay moves due messages from a Store to a Publisher.
type Relay struct {
	store     Store
	publisher eventbus.Publisher
	cfg       RelayConfig
	logger    *slog.Logger
	metrics   observability.Metrics
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	statsMu sync.Mutex
	stats   Stats
}

// Option configures a Relay.
type Option func(*Relay)

func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m observability.Metrics) Option {
	return func(r *Relay) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithClock replaces time.Now for due checks and bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRelay(store Store, publisher eventbus.Publisher, cfg RelayConfig, opts ...Option) *Relay {
	def := DefaultRelayConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}

	r := &Relay{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "outbox_relay")
	return r
}

// Start launches the polling loop. Calling Start on a running relay is a no-op.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)

	r.logger.Info("outbox relay started", "poll_interval", r.cfg.PollInterval, "batch_size", r.cfg.BatchSize)
	return nil
}

// Stop cancels the loop and waits for the pass in flight to finish.
func (r *Relay) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.logger.Info("outbox relay stopped")
}

func (r *Relay) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Relay) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.ErrorContext(ctx, "outbox pass failed", "error", err)
			}
		}
	}
}

// RunOnce publishes one batch of due messages. A publish failure is recorded on
// the message and never aborts the pass; a refusing publisher ends it early.
func (r *Relay) RunOnce(ctx context.Context) (Pass, error) {
	var pass Pass
	now := r.now()

	msgs, err := r.store.Due(ctx, now, r.cfg.BatchSize)
	if err != nil {
		r.noteError(now, err)
		return pass, err
	}
	r.notePass(now, msgs)

	for _, msg := range msgs {
		err := r.publish(ctx, msg)
		switch {
		case err == nil:
			if err := r.store.MarkPublished(ctx, msg.ID, r.now()); err != nil {
				// The broker has it; a later pass will publish it again and consumers dedupe on event_id.
				r.logger.ErrorContext(ctx, "mark published failed", "id", msg.ID, "event_id", msg.EventID, "error", err)
				continue
			}
			pass.Published++
			r.metrics.Counter(observability.MetricEventsPublished, 1, observability.T("routing_key", msg.RoutingKey))

		case errors.Is(err, eventbus.ErrPublisherOpen):
			r.noteError(now, err)
			r.logger.WarnContext(ctx, "publisher unavailable, deferring batch", "remaining", len(msgs)-pass.Published-pass.Retried-pass.Dead)
			pass.Deferred = true
			r.tally(pass)
			return pass, nil

		default:
			r.noteError(now, err)
			r.fail(ctx, msg, err, &pass)
		}
	}

	r.tally(pass)
	return pass, nil
}

func (r *Relay) publish(ctx context.Context, msg *Message) error {
	body, err := msg.Envelope()
	if err != nil {
		return err
	}
	return r.publisher.Publish(ctx, msg.RoutingKey, body)
}

func (r *Relay) fail(ctx context.Context, msg *Message, cause error, pass *Pass) {
	attempt := msg.Attempts + 1
	log := r.logger.With("id", msg.ID, "event_id", msg.EventID, "routing_key", msg.RoutingKey, "attempt", attempt)

	if attempt >= r.cfg.MaxAttempts {
		pass.Dead++
		r.metrics.Counter(observability.MetricOutboxDead, 1, observability.T("routing_key", msg.RoutingKey))
		log.ErrorContext(ctx, "outbox message dead-lettered", "error", cause)
		if err := r.store.MarkDead(ctx, msg.ID, cause.Error(), r.now()); err != nil {
			log.ErrorContext(ctx, "mark dead failed", "error", err)
		}
		return
	}

	pass.Retried++
	retryAt := r.now().Add(Backoff(attempt, r.cfg.BackoffBase, r.cfg.BackoffMax))
	log.WarnContext(ctx, "publish failed, will retry", "retry_at", retryAt, "error", cause)
	if err := r.store.Retry(ctx, msg.ID, cause.Error(), retryAt); err != nil {
		log.ErrorContext(ctx, "schedule retry failed", "error", err)
	}
}

// Backoff doubles base for every attempt after the first, capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func (r *Relay) Stats() Stats {
	running := r.Running()
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	s := r.stats
	s.Running = running
	return s
}

func (r *Relay) tally(p Pass) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats.Published += uint64(p.Published)
	r.stats.Retried += uint64(p.Retried)
	r.stats.Dead += uint64(p.Dead)
}

func (r *Relay) noteError(at time.Time, err error) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats.LastError = err.Error()
	r.stats.LastErrorAt = &at
}

func (r *Relay) notePass(at time.Time, msgs []*Message) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats.LastPassAt = &at
	r.stats.Lag = 0
	for _, m := range msgs {
		if lag := at.Sub(m.CreatedAt); lag > r.stats.Lag {
			r.stats.Lag = lag
		}
	}
}
