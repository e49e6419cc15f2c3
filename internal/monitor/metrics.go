// Package monitor exposes operational visibility: prometheus metrics and a
// read-only HTTP status API. Nothing here feeds back into decisions.
package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts decision-core activity. Registered on a private registry so
// multiple instances (and tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	BarsTotal       *prometheus.CounterVec
	BarsRejected    *prometheus.CounterVec
	SignalsTotal    *prometheus.CounterVec
	DecisionsTotal  *prometheus.CounterVec
	ExecFailures    prometheus.Counter
	DecisionSeconds prometheus.Histogram
}

// NewMetrics builds and registers the metric set.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.BarsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bars_total", Help: "Bars accepted into candle buffers"},
		[]string{"timeframe"},
	)
	m.BarsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "bars_rejected_total", Help: "Bars discarded as out of order or malformed"},
		[]string{"timeframe"},
	)
	m.SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Signals emitted by generators and exit checks"},
		[]string{"type", "source"},
	)
	m.DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "decisions_total", Help: "Aggregated decisions forwarded to the execution port"},
		[]string{"type"},
	)
	m.ExecFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "execution_failures_total", Help: "Execution port errors"},
	)
	m.DecisionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "decision_pass_seconds",
			Help:    "Wall time of one feature and decision pass",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)

	m.registry.MustRegister(
		m.BarsTotal, m.BarsRejected, m.SignalsTotal,
		m.DecisionsTotal, m.ExecFailures, m.DecisionSeconds,
	)
	return m
}

// Registry exposes the private registry for the HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
