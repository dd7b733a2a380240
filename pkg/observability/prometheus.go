package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics exports Metrics through a Prometheus registry.
// Vectors are created on first use; the label set of a metric is fixed by the
// tag keys of its first observation and later samples with other keys are dropped.
// Names already registered by another collector are dropped as well.
type PrometheusMetrics struct {
	registry prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

// NewPrometheusMetrics creates a PrometheusMetrics registering into registry.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	return &PrometheusMetrics{
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

func (m *PrometheusMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metricName := promName(name) + "_total"
	keys, values := splitTags(tags)
	vec, ok := m.counters[metricName]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: metricName, Help: name}, keys)
		if !m.register(metricName, vec, keys) {
			return
		}
		m.counters[metricName] = vec
	}
	if !m.sameLabels(metricName, keys) {
		return
	}
	vec.WithLabelValues(values...).Add(float64(value))
}

func (m *PrometheusMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metricName := promName(name)
	keys, values := splitTags(tags)
	vec, ok := m.gauges[metricName]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: metricName, Help: name}, keys)
		if !m.register(metricName, vec, keys) {
			return
		}
		m.gauges[metricName] = vec
	}
	if !m.sameLabels(metricName, keys) {
		return
	}
	vec.WithLabelValues(values...).Set(value)
}

// Timing records durations in seconds.
func (m *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.observe(promName(name)+"_seconds", name, duration.Seconds(), tags)
}

func (m *PrometheusMetrics) observe(metricName, help string, value float64, tags []Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys, values := splitTags(tags)
	vec, ok := m.histograms[metricName]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricName,
			Help:    help,
			Buckets: prometheus.DefBuckets,
		}, keys)
		if !m.register(metricName, vec, keys) {
			return
		}
		m.histograms[metricName] = vec
	}
	if !m.sameLabels(metricName, keys) {
		return
	}
	vec.WithLabelValues(values...).Observe(value)
}

func (m *PrometheusMetrics) register(metricName string, c prometheus.Collector, keys []string) bool {
	if err := m.registry.Register(c); err != nil {
		return false
	}
	m.labels[metricName] = keys
	return true
}

func (m *PrometheusMetrics) sameLabels(metricName string, keys []string) bool {
	want := m.labels[metricName]
	if len(want) != len(keys) {
		return false
	}
	for i := range want {
		if want[i] != keys[i] {
			return false
		}
	}
	return true
}

// splitTags returns label names and values sorted by name.
func splitTags(tags []Tag) ([]string, []string) {
	sorted := sortedTags(tags)
	keys := make([]string, len(sorted))
	values := make([]string, len(sorted))
	for i, t := range sorted {
		keys[i] = promName(t.Key)
		values[i] = t.Value
	}
	return keys, values
}

var promNameReplacer = strings.NewReplacer(".", "_", "-", "_", " ", "_")

func promName(name string) string {
	return promNameReplacer.Replace(name)
}
