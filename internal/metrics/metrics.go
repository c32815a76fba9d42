// Package metrics provides Prometheus metrics for study runs and tracking
// replays.
package metrics

import (
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/thalesfsp/hotune"
)

// Manager owns the metrics of one run, on its own registry.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         *prometheus.Registry

	trials        *prometheus.CounterVec
	trialDuration prometheus.Histogram
	bestValue     prometheus.Gauge
	sessions      *prometheus.CounterVec
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the "hotune" namespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets the trial duration buckets, in seconds.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithConstLabels adds labels to every metric (typically the study name).
func WithConstLabels(labels map[string]string) Option {
	return func(m *Manager) {
		for k, v := range labels {
			m.constLabels[k] = v
		}
	}
}

// WithRegistry registers the metrics on registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hotune",
		histogramBuckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		constLabels:      prometheus.Labels{},
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.trials = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "study",
		Name:        "trials_total",
		Help:        "Total number of finished trials by state",
		ConstLabels: m.constLabels,
	}, []string{"state"})

	m.trialDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "study",
		Name:        "trial_duration_seconds",
		Help:        "Wall-clock duration of finished trials in seconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.bestValue = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "study",
		Name:        "best_value",
		Help:        "Objective value of the best completed trial so far",
		ConstLabels: m.constLabels,
	})

	m.sessions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "tracking",
		Name:        "sessions_total",
		Help:        "Total number of replayed trial records by result",
		ConstLabels: m.constLabels,
	}, []string{"result"})
}

// Registry returns the registry the metrics live on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTrial records one finished trial.
func (m *Manager) ObserveTrial(update hotune.ProgressUpdate) {
	m.trials.WithLabelValues(update.Trial.State.String()).Inc()

	if update.Trial.DatetimeComplete != nil {
		m.trialDuration.Observe(update.Trial.Duration().Seconds())
	}

	if !math.IsNaN(update.CurrentBestValue) {
		m.bestValue.Set(update.CurrentBestValue)
	}
}

// ObserveSession records one replayed record. It matches tracking.Observer.
func (m *Manager) ObserveSession(result string) {
	m.sessions.WithLabelValues(result).Inc()
}

// WriteTextfile writes every metric in the text exposition format, for the
// node exporter textfile collector.
func (m *Manager) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}

	return nil
}
