package eventbus_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/estatecrm/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	keys []string
	got  []*eventbus.Envelope
	err  error
}

func (r *recorder) RoutingKeys() []string { return r.keys }

func (r *recorder) Handle(_ context.Context, env *eventbus.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, env)
	return r.err
}

func body(t *testing.T, env eventbus.Envelope) []byte {
	t.Helper()
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return b
}

func sampleEnvelope(key string) eventbus.Envelope {
	return eventbus.Envelope{
		EventID:       uuid.New(),
		AggregateID:   uuid.New(),
		AggregateType: "Subscription",
		RoutingKey:    key,
		OccurredAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Payload:       json.RawMessage(`{"login":"agent"}`),
		Metadata:      eventbus.EventMetadata{CorrelationID: "c-1"},
	}
}

func TestDecode(t *testing.T) {
	env := sampleEnvelope("subscriptions.subscription.expired")

	got, err := eventbus.Decode(body(t, env), "ignored")
	require.NoError(t, err)
	assert.Equal(t, env.EventID, got.EventID)
	assert.Equal(t, "subscriptions.subscription.expired", got.RoutingKey)
	assert.Equal(t, "c-1", got.Metadata.CorrelationID)

	env.RoutingKey = ""
	got, err = eventbus.Decode(body(t, env), "subscriptions.subscription.created")
	require.NoError(t, err)
	assert.Equal(t, "subscriptions.subscription.created", got.RoutingKey)

	_, err = eventbus.Decode(body(t, env), "")
	assert.ErrorIs(t, err, eventbus.ErrMalformed)

	_, err = eventbus.Decode([]byte("{"), "k")
	assert.ErrorIs(t, err, eventbus.ErrMalformed)
}

func TestRouter_RoutesByKey(t *testing.T) {
	router := eventbus.NewRouter(nil)
	expired := &recorder{keys: []string{"subscriptions.subscription.expired"}}
	both := &recorder{keys: []string{"subscriptions.subscription.expired", "subscriptions.subscription.created"}}
	router.Register(expired)
	router.Register(both)

	assert.Equal(t, []string{"subscriptions.subscription.created", "subscriptions.subscription.expired"}, router.RoutingKeys())

	env := sampleEnvelope("subscriptions.subscription.expired")
	require.NoError(t, router.Route(context.Background(), &env))
	assert.Len(t, expired.got, 1)
	assert.Len(t, both.got, 1)

	other := sampleEnvelope("subscriptions.subscription.toggled")
	assert.NoError(t, router.Route(context.Background(), &other))
}

func TestRouter_RunsEveryHandlerAndJoinsFailures(t *testing.T) {
	router := eventbus.NewRouter(nil)
	first := &recorder{keys: []string{"k"}, err: errors.New("smtp down")}
	second := &recorder{keys: []string{"k"}}
	third := &recorder{keys: []string{"k"}, err: errors.New("sms down")}
	router.Register(first)
	router.Register(second)
	router.Register(third)

	env := sampleEnvelope("k")
	err := router.Route(context.Background(), &env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Contains(t, err.Error(), "sms down")
	assert.Len(t, second.got, 1)
}

func TestLocalBus_DeliversSynchronously(t *testing.T) {
	bus := eventbus.NewLocalBus(nil)
	h := &recorder{keys: []string{"subscriptions.subscription.activated"}}
	bus.Register(h)

	env := sampleEnvelope("subscriptions.subscription.activated")
	require.NoError(t, bus.Publish(context.Background(), env.RoutingKey, body(t, env)))

	require.Len(t, h.got, 1)
	assert.Equal(t, env.EventID, h.got[0].EventID)
	assert.JSONEq(t, `{"login":"agent"}`, string(h.got[0].Payload))
}

func TestLocalBus_SwallowsFailures(t *testing.T) {
	var logs bytes.Buffer
	bus := eventbus.NewLocalBus(slog.New(slog.NewTextHandler(&logs, nil)))
	bus.Register(&recorder{keys: []string{"k"}, err: errors.New("boom")})

	env := sampleEnvelope("k")
	assert.NoError(t, bus.Publish(context.Background(), "k", body(t, env)))
	assert.NoError(t, bus.Publish(context.Background(), "k", []byte("not json")))

	assert.Contains(t, logs.String(), "local delivery failed")
	assert.Contains(t, logs.String(), "dropping undeliverable event")
	assert.NoError(t, bus.Close())
}

func TestDiscardPublisher(t *testing.T) {
	p := eventbus.NewDiscardPublisher(nil)
	assert.NoError(t, p.Publish(context.Background(), "k", []byte("{}")))
	assert.NoError(t, p.Close())
}
