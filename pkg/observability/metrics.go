package observability

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics records counters, gauges and timings. Implementations must be safe
// for concurrent use.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag is a metric label.
type Tag struct {
	Key   string
	Value string
}

// T creates a Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)          {}
func (NoopMetrics) Gauge(string, float64, ...Tag)          {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag)   {}

// InMemoryMetrics keeps samples in maps keyed by name and tags. Tag order
// does not matter for lookups.
type InMemoryMetrics struct {
	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]float64
	timings  map[string][]time.Duration
}

// NewInMemoryMetrics creates an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timings:  make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	m.counters[formatKey(name, tags)] += value
	m.mu.Unlock()
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	m.gauges[formatKey(name, tags)] = value
	m.mu.Unlock()
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	key := formatKey(name, tags)
	m.mu.Lock()
	m.timings[key] = append(m.timings[key], duration)
	m.mu.Unlock()
}

// GetCounter returns the accumulated counter value.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[formatKey(name, tags)]
}

// GetGauge returns the last gauge value.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[formatKey(name, tags)]
}

// GetTimings returns a copy of the recorded durations.
func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]time.Duration(nil), m.timings[formatKey(name, tags)]...)
}

func formatKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	sorted := sortedTags(tags)
	var b strings.Builder
	b.WriteString(name)
	for _, t := range sorted {
		b.WriteString(":")
		b.WriteString(t.Key)
		b.WriteString("=")
		b.WriteString(t.Value)
	}
	return b.String()
}

func sortedTags(tags []Tag) []Tag {
	sorted := append([]Tag(nil), tags...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	return sorted
}

// Metric names.
const (
	MetricOperationTotal    = "estatecrm.operation.total"
	MetricOperationDuration = "estatecrm.operation.duration"
	MetricOperationErrors   = "estatecrm.operation.errors"

	MetricSubscriptionsCreated   = "estatecrm.subscriptions.created"
	MetricSubscriptionsActivated = "estatecrm.subscriptions.activated"
	MetricSubscriptionsExpired   = "estatecrm.subscriptions.expired"
	MetricSubscriptionsReminded  = "estatecrm.subscriptions.reminded"

	MetricSweeperDuration = "estatecrm.sweeper.duration"
	MetricSweeperFailures = "estatecrm.sweeper.failures"
	MetricSweeperSkipped  = "estatecrm.sweeper.skipped"

	MetricOutboxPending     = "estatecrm.outbox.pending"
	MetricOutboxBacklogDead = "estatecrm.outbox.dead_backlog"
	MetricOutboxDead        = "estatecrm.outbox.dead"

	MetricEventsPublished = "estatecrm.events.published"
	MetricEventsConsumed  = "estatecrm.events.consumed"
)
