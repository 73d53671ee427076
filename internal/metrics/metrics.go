// Package metrics provides Prometheus metrics for the Zaya backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Log event metrics
	LogEventsTotal   *prometheus.CounterVec
	LogEventDuration prometheus.Histogram

	// Completion service metrics
	CompletionsTotal *prometheus.CounterVec

	// Record store metrics
	UpsertsTotal *prometheus.CounterVec
}

// New creates all metrics registered against the given registerer. Passing a
// fresh registry keeps tests isolated from the default one.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LogEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zaya_log_events_total",
				Help: "Total number of handled log events",
			},
			[]string{"status"},
		),
		LogEventDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zaya_log_event_duration_seconds",
				Help:    "End-to-end duration of log event handling in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		CompletionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zaya_completions_total",
				Help: "Total number of completion requests by kind and status",
			},
			[]string{"kind", "status"},
		),
		UpsertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zaya_bitable_upserts_total",
				Help: "Total number of Bitable upsert attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}
