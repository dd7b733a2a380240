package eventbus

import (
	"context"
	"log/slog"
	"time"
)

// LocalBus is the broker used in local mode: Publish decodes the envelope and
// routes it synchronously. Handler failures are logged and swallowed because
// there is no queue to redeliver from.
type LocalBus struct {
	router *Router
	logger *slog.Logger
}

func NewLocalBus(logger *slog.Logger) *LocalBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalBus{router: NewRouter(logger), logger: logger}
}

func (b *LocalBus) Register(h Handler) {
	b.router.Register(h)
}

func (b *LocalBus) Publish(ctx context.Context, routingKey string, body []byte) error {
	env, err := Decode(body, routingKey)
	if err != nil {
		b.logger.ErrorContext(ctx, "dropping undeliverable event", "routing_key", routingKey, "error", err)
		return nil
	}

	start := time.Now()
	if err := b.router.Route(ctx, env); err != nil {
		b.logger.ErrorContext(ctx, "local delivery failed",
			"routing_key", env.RoutingKey,
			"event_id", env.EventID,
			"error", err,
		)
		return nil
	}
	b.logger.DebugContext(ctx, "event delivered locally",
		"routing_key", env.RoutingKey,
		"event_id", env.EventID,
		"took", time.Since(start),
	)
	return nil
}

func (b *LocalBus) Close() error { return nil }

// DiscardPublisher drops every event. It stands in when neither a broker nor
// local mode is configured.
type DiscardPublisher struct {
	logger *slog.Logger
}

func NewDiscardPublisher(logger *slog.Logger) *DiscardPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscardPublisher{logger: logger}
}

func (p *DiscardPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.logger.DebugContext(ctx, "event discarded", "routing_key", routingKey, "bytes", len(body))
	return nil
}

func (p *DiscardPublisher) Close() error { return nil }
