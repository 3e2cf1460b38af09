// ABOUTME: Prometheus metrics for chat turns and the session registry
// ABOUTME: Registered on a caller-supplied registry so tests can use fresh ones

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes used as the "outcome" label.
const (
	OutcomeAnswered           = "answered"
	OutcomeEmpty              = "empty"
	OutcomeStreamError        = "stream_error"
	OutcomeSessionUnavailable = "session_unavailable"
	OutcomeCancelled          = "cancelled"
)

// Metrics holds the gateway's collectors.
type Metrics struct {
	registry *prometheus.Registry

	turns        *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	evicted      prometheus.Counter
	persistFails prometheus.Counter
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors. activeSessions is sampled on every scrape.
func New(activeSessions func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "beykus_turns_total",
			Help: "Chat turns by outcome",
		}, []string{"outcome"}),
		turnDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "beykus_turn_duration_seconds",
			Help:    "Chat turn duration in seconds, from request to last event",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 250ms to ~64s
		}, []string{"outcome"}),
		evicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "beykus_sessions_evicted_total",
			Help: "Sessions removed by the idle sweep",
		}),
		persistFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "beykus_persist_failures_total",
			Help: "Bot answers that could not be stored",
		}),
	}
	if activeSessions != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "beykus_active_sessions",
			Help: "Chat sessions currently held in memory",
		}, activeSessions)
	}
	return m
}

// TurnFinished records one turn.
func (m *Metrics) TurnFinished(outcome string, d time.Duration) {
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// SessionsEvicted records sessions removed by a sweep.
func (m *Metrics) SessionsEvicted(n int) {
	m.evicted.Add(float64(n))
}

// PersistFailed records an answer that was streamed but not stored.
func (m *Metrics) PersistFailed() {
	m.persistFails.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
