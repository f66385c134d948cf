// Package metrics exposes Prometheus collectors for fetches, sessions and proposals.
package metrics

import (
	"net/http"
	"time"

	"diaspora-map/internal/query"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry      *prometheus.Registry
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	sessions      prometheus.Gauge
	proposals     *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diaspora_map",
			Name:      "backend_fetches_total",
			Help:      "Settled backend fetches by cache and status.",
		}, []string{"cache", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "diaspora_map",
			Name:      "backend_fetch_duration_seconds",
			Help:      "Backend fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"cache"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "diaspora_map",
			Name:      "sessions_active",
			Help:      "Open map sessions.",
		}),
		proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diaspora_map",
			Name:      "proposals_total",
			Help:      "Location proposals by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.fetches, m.fetchDuration, m.sessions, m.proposals)
	return m
}

// ObserveFetch matches query.Observer.
func (m *Metrics) ObserveFetch(cache string, status query.Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(cache, string(status)).Inc()
	m.fetchDuration.WithLabelValues(cache).Observe(elapsed.Seconds())
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// ProposalOutcome counts validation failures, submissions and failures.
func (m *Metrics) ProposalOutcome(outcome string) {
	if m == nil {
		return
	}
	m.proposals.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
