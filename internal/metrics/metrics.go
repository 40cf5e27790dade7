// Package metrics provides Prometheus metrics for the hot-folder pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Attempt outcomes used as the "outcome" label.
const (
	OutcomeDone        = "done"
	OutcomeSkipped     = "skipped"
	OutcomeUnstable    = "unstable"
	OutcomeUnsupported = "unsupported"
	OutcomeInvalid     = "invalid"
	OutcomeFailed      = "failed"
)

// Pipeline holds the dispatcher's collectors. Each instance registers into
// its own registry so tests and multiple apps never collide.
type Pipeline struct {
	Registry *prometheus.Registry

	EventsReceived     *prometheus.CounterVec
	EventsDeduplicated *prometheus.CounterVec
	Attempts           *prometheus.CounterVec
	InFlight           prometheus.Gauge
	StabilityWait      *prometheus.HistogramVec
	GatewayCalls       *prometheus.CounterVec
}

// New creates and registers the pipeline collectors.
func New() *Pipeline {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Pipeline{
		Registry: reg,
		EventsReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelsync_events_received_total",
				Help: "Raw file events received from watchers",
			},
			[]string{"folder", "kind"},
		),
		EventsDeduplicated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelsync_events_deduplicated_total",
				Help: "Events discarded because the path was already in flight",
			},
			[]string{"folder"},
		),
		Attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelsync_attempts_total",
				Help: "Processing attempts by final outcome",
			},
			[]string{"folder", "outcome"},
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "panelsync_paths_in_flight",
				Help: "Paths currently queued or being processed",
			},
		),
		StabilityWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "panelsync_stability_wait_seconds",
				Help:    "Time spent waiting for files to stop changing",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"folder", "stable"},
		),
		GatewayCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panelsync_gateway_calls_total",
				Help: "Calls into the host application by operation and status",
			},
			[]string{"operation", "status"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{Registry: p.Registry})
}
