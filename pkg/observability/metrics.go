package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing, so components can be wired without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec

	// Cache metrics
	CacheRebuildsTotal   *prometheus.CounterVec
	CacheRebuildDuration prometheus.Histogram
	CacheEntries         prometheus.Gauge

	// Session metrics
	LoginsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_authz_decisions_total",
				Help: "Authorization decisions by HTTP method and outcome",
			},
			[]string{"method", "outcome"},
		),
		CacheRebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_cache_rebuilds_total",
				Help: "Authorization cache rebuilds by outcome",
			},
			[]string{"outcome"},
		),
		CacheRebuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "warden_cache_rebuild_duration_seconds",
				Help:    "Authorization cache rebuild duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_cache_entries",
				Help: "Number of permission tuples loaded by the last rebuild",
			},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_logins_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	registry.MustRegister(
		m.AuthzDecisionsTotal,
		m.CacheRebuildsTotal,
		m.CacheRebuildDuration,
		m.CacheEntries,
		m.LoginsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCacheRebuild records the outcome of one cache rebuild.
func (m *Metrics) ObserveCacheRebuild(duration time.Duration, entries int, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.CacheRebuildsTotal.WithLabelValues(outcome).Inc()
	m.CacheRebuildDuration.Observe(duration.Seconds())
	if err == nil {
		m.CacheEntries.Set(float64(entries))
	}
}

// IncAuthzDecision records one authorization decision.
func (m *Metrics) IncAuthzDecision(method, outcome string) {
	if m == nil {
		return
	}
	m.AuthzDecisionsTotal.WithLabelValues(method, outcome).Inc()
}

// IncLogin records one login attempt outcome.
func (m *Metrics) IncLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, statusLabel(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func statusLabel(status int) string {
	switch {
	case status < 200:
		return "1xx"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
