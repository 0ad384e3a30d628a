// Package metrics provides Prometheus metrics for the stargazer ledger.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cyclesTotal      *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	registrations    *prometheus.CounterVec
	entriesIngested  *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// NewMetrics creates the collectors on a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stargazer_reconcile_cycles_total",
				Help: "Reconciliation cycles by outcome",
			},
			[]string{"outcome"},
		),
		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stargazer_reconcile_duration_seconds",
				Help:    "Duration of a reconciliation cycle for one repository",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stargazer_registrations_total",
				Help: "Repository registrations by outcome",
			},
			[]string{"outcome"},
		),
		entriesIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stargazer_entries_ingested_total",
				Help: "Star entries written, by bucket kind",
			},
			[]string{"kind"},
		),
		upstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stargazer_upstream_requests_total",
				Help: "GitHub API requests by operation and status",
			},
			[]string{"op", "status"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stargazer_http_requests_total",
				Help: "HTTP requests by route pattern and status",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycle records one reconciliation cycle.
func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveRegistration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

// AddEntries counts n entries written to a bucket of the given kind ("baseline" or "dated").
func (m *Metrics) AddEntries(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entriesIngested.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) ObserveUpstream(op, status string) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(op, status).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
