// Package prometheus implements observability.MetricFactory on the
// Prometheus client.
package prometheus

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xraph/drip/observability"
)

// DefaultBuckets spans one satoshi to a thousand BTC.
var DefaultBuckets = prometheus.ExponentialBuckets(1, 10, 12)

// Factory creates Prometheus metrics. Dotted names become underscored
// metric names; asking twice for a name returns the same metric.
type Factory struct {
	factory     promauto.Factory
	constLabels prometheus.Labels
	buckets     []float64

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

var _ observability.MetricFactory = (*Factory)(nil)

// Option configures a Factory.
type Option func(*Factory)

// WithConstLabels attaches labels to every metric.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(f *Factory) { f.constLabels = labels }
}

// WithBuckets overrides DefaultBuckets for histograms.
func WithBuckets(buckets []float64) Option {
	return func(f *Factory) { f.buckets = buckets }
}

// NewFactory registers metrics with reg. A nil reg uses the default
// registerer.
func NewFactory(reg prometheus.Registerer, opts ...Option) *Factory {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := &Factory{
		factory:    promauto.With(reg),
		buckets:    DefaultBuckets,
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Counter implements observability.MetricFactory.
func (f *Factory) Counter(name string) observability.Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := f.factory.NewCounter(prometheus.CounterOpts{
		Name:        metricName(name) + "_total",
		Help:        "Count of " + name,
		ConstLabels: f.constLabels,
	})
	f.counters[name] = c
	return c
}

// Histogram implements observability.MetricFactory.
func (f *Factory) Histogram(name string) observability.Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := f.factory.NewHistogram(prometheus.HistogramOpts{
		Name:        metricName(name),
		Help:        "Distribution of " + name,
		ConstLabels: f.constLabels,
		Buckets:     f.buckets,
	})
	f.histograms[name] = h
	return h
}

var replacer = strings.NewReplacer(".", "_", "-", "_")

func metricName(name string) string {
	return replacer.Replace(name)
}
