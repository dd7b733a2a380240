package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// Exchange is the durable topic exchange all subscription events go to.
	Exchange = "estatecrm.domain.events"
	// NotificationsQueue is the worker's queue for notification handlers.
	NotificationsQueue = "estatecrm.notifications"
)

// ErrNotConfirmed is returned when the broker nacks a publish.
var ErrNotConfirmed = errors.New("broker did not confirm publish")

// dialTopic connects and declares the exchange on a fresh channel.
func dialTopic(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

// AMQPPublisher publishes persistent messages and waits for the broker's
// confirmation before reporting success.
type AMQPPublisher struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

func NewAMQPPublisher(url string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, ch, err := dialTopic(url, Exchange)
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	logger.Info("rabbitmq publisher connected", "exchange", Exchange)
	return &AMQPPublisher{conn: conn, ch: ch, logger: logger}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.mu.Lock()
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm for %s: %w", routingKey, err)
	}
	if !acked {
		return fmt.Errorf("%w: %s", ErrNotConfirmed, routingKey)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.Close()
}

// AMQPConsumer drains a durable queue bound to the routing keys of a Router.
type AMQPConsumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	router *Router
	logger *slog.Logger
}

// AMQPConsumerConfig configures NewAMQPConsumer.
type AMQPConsumerConfig struct {
	URL      string
	Queue    string
	Prefetch int
	Logger   *slog.Logger
}

// NewAMQPConsumer declares the queue and binds it to every key router handles,
// so handlers must be registered before the call.
func NewAMQPConsumer(cfg AMQPConsumerConfig, router *Router) (*AMQPConsumer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Queue == "" {
		cfg.Queue = NotificationsQueue
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	conn, ch, err := dialTopic(cfg.URL, Exchange)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*AMQPConsumer, error) {
		_ = conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fail(fmt.Errorf("declare queue %s: %w", cfg.Queue, err))
	}
	for _, key := range router.RoutingKeys() {
		if err := ch.QueueBind(cfg.Queue, key, Exchange, false, nil); err != nil {
			return fail(fmt.Errorf("bind %s to %s: %w", cfg.Queue, key, err))
		}
	}
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		return fail(fmt.Errorf("set prefetch: %w", err))
	}

	cfg.Logger.Info("rabbitmq consumer connected", "queue", cfg.Queue, "bindings", len(router.RoutingKeys()))
	return &AMQPConsumer{conn: conn, ch: ch, queue: cfg.Queue, router: router, logger: cfg.Logger}, nil
}

// Run consumes until ctx is done or the broker closes the delivery channel.
func (c *AMQPConsumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", c.queue)
			}
			c.settle(ctx, d, c.deliver(ctx, d))
		}
	}
}

func (c *AMQPConsumer) deliver(ctx context.Context, d amqp.Delivery) error {
	env, err := Decode(d.Body, d.RoutingKey)
	if err != nil {
		return err
	}
	return c.router.Route(ctx, env)
}

// settle acks successes and malformed bodies. A failed first delivery is
// requeued once; a failed redelivery is rejected so it cannot loop forever.
func (c *AMQPConsumer) settle(ctx context.Context, d amqp.Delivery, err error) {
	log := c.logger.With("routing_key", d.RoutingKey, "delivery_tag", d.DeliveryTag)

	var settleErr error
	switch {
	case err == nil:
		settleErr = d.Ack(false)
	case errors.Is(err, ErrMalformed):
		log.ErrorContext(ctx, "dropping malformed event", "error", err)
		settleErr = d.Ack(false)
	case d.Redelivered:
		log.ErrorContext(ctx, "event failed again, rejecting", "error", err)
		settleErr = d.Nack(false, false)
	default:
		log.WarnContext(ctx, "event failed, requeueing", "error", err)
		settleErr = d.Nack(false, true)
	}
	if settleErr != nil {
		log.ErrorContext(ctx, "settle delivery failed", "error", settleErr)
	}
}

func (c *AMQPConsumer) Close() error {
	return c.conn.Close()
}
