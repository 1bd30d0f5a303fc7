package source

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the registry's operational metrics
type Metrics struct {
	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	Transitions      *prometheus.CounterVec
	SkippedStale     prometheus.Counter
	SubscriberFaults prometheus.Counter
	SourcesTotal     prometheus.Gauge
	SourcesVisible   prometheus.Gauge
}

// NewMetrics creates the registry metrics and registers them with the
// given registerer. A nil registerer yields unregistered collectors,
// which is useful in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sourceregistry",
				Subsystem: "notifier",
				Name:      "cycles_total",
				Help:      "Total number of environment-change cycles run, by outcome",
			},
			[]string{"outcome"},
		),

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "sourceregistry",
				Subsystem: "notifier",
				Name:      "cycle_duration_seconds",
				Help:      "Duration of environment-change cycles",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),

		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sourceregistry",
				Subsystem: "notifier",
				Name:      "transitions_total",
				Help:      "Total number of visibility transitions applied",
			},
			[]string{"direction"},
		),

		SkippedStale: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sourceregistry",
				Subsystem: "notifier",
				Name:      "skipped_stale_total",
				Help:      "Pending actions skipped because the source was unregistered mid-cycle",
			},
		),

		SubscriberFaults: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sourceregistry",
				Subsystem: "notifier",
				Name:      "subscriber_faults_total",
				Help:      "Subscriber callbacks that panicked during event delivery",
			},
		),

		SourcesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sourceregistry",
				Subsystem: "registry",
				Name:      "sources",
				Help:      "Number of registered sources",
			},
		),

		SourcesVisible: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "sourceregistry",
				Subsystem: "registry",
				Name:      "sources_visible",
				Help:      "Number of registered sources currently visible",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.CyclesTotal,
			m.CycleDuration,
			m.Transitions,
			m.SkippedStale,
			m.SubscriberFaults,
			m.SourcesTotal,
			m.SourcesVisible,
		)
	}

	return m
}
