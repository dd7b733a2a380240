// Package eventbus carries staged domain events from the outbox to their
// handlers, either through RabbitMQ or synchronously in process.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Publisher puts an encoded envelope on the bus.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
	Close() error
}

// Handler reacts to events with the routing keys it declares.
type Handler interface {
	RoutingKeys() []string
	Handle(ctx context.Context, env *Envelope) error
}

// Envelope is the wire form of a domain event.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      EventMetadata   `json:"metadata,omitempty"`
}

// EventMetadata ties an event to the request and actor behind it.
type EventMetadata struct {
	UserID        uuid.UUID `json:"user_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
}

// ErrMalformed marks a body that can never be delivered, so retrying it is pointless.
var ErrMalformed = errors.New("malformed event envelope")

// Decode parses body. routingKey fills in an envelope that omits its own.
func Decode(body []byte, routingKey string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.RoutingKey == "" {
		env.RoutingKey = routingKey
	}
	if env.RoutingKey == "" {
		return nil, fmt.Errorf("%w: no routing key", ErrMalformed)
	}
	return &env, nil
}
