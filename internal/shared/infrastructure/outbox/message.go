// Package outbox stages domain events in the same transaction as the state
// change that produced them and relays them to the broker afterwards.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/shared/domain"
	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// Message is one staged event.
type Message struct {
	ID            int64
	EventID       uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	RoutingKey    string
	Payload       json.RawMessage
	Metadata      json.RawMessage
	CreatedAt     time.Time

	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	PublishedAt   *time.Time
	DeadAt        *time.Time
	DeadReason    string
}

// FromEvent serialises a domain event for staging. Metadata is stored in the
// shape consumers decode so the relay never has to translate it.
func FromEvent(event domain.DomainEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.RoutingKey(), err)
	}

	md := event.Metadata()
	metadata, err := json.Marshal(eventbus.EventMetadata{
		UserID:        md.UserID,
		CorrelationID: nonNil(md.CorrelationID),
		CausationID:   nonNil(md.CausationID),
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s metadata: %w", event.RoutingKey(), err)
	}

	return &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		RoutingKey:    event.RoutingKey(),
		Payload:       payload,
		Metadata:      metadata,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// FromEvents stages every event in order.
func FromEvents(events []domain.DomainEvent) ([]*Message, error) {
	msgs := make([]*Message, 0, len(events))
	for _, event := range events {
		msg, err := FromEvent(event)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Pending reports whether the message still waits for the broker.
func (m *Message) Pending() bool {
	return m.PublishedAt == nil && m.DeadAt == nil
}

// DueAt reports whether a pending message may be attempted at now.
func (m *Message) DueAt(now time.Time) bool {
	return m.Pending() && (m.NextAttemptAt == nil || !m.NextAttemptAt.After(now))
}

// Envelope is the body put on the wire.
func (m *Message) Envelope() ([]byte, error) {
	env := eventbus.Envelope{
		EventID:       m.EventID,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		RoutingKey:    m.RoutingKey,
		OccurredAt:    m.CreatedAt,
		Payload:       m.Payload,
	}
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &env.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of outbox message %d: %w", m.ID, err)
		}
	}
	return json.Marshal(env)
}

func nonNil(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}
