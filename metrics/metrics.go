// Package metrics bundles the Prometheus collectors for the service. The
// registry is owned by the Metrics value, never the package-level default.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. A nil *Metrics is valid and records
// nothing, so wiring can leave it out in tests.
type Metrics struct {
	registry *prometheus.Registry

	GenerationRequests *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	ModelAttempts      *prometheus.CounterVec
	CascadeAdvances    *prometheus.CounterVec
	GenerationErrors   *prometheus.CounterVec
	CacheEvents        *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New constructs the collectors on a fresh private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	genReqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripweave_generation_requests_total",
		Help: "Generation runs by terminal outcome",
	}, []string{"outcome"})

	genDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripweave_generation_duration_seconds",
		Help:    "Wall-clock duration of generation runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripweave_model_attempts_total",
		Help: "Individual model invocations by result",
	}, []string{"model", "result"})

	advances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripweave_cascade_advances_total",
		Help: "Times the cascade gave up on a model and moved on",
	}, []string{"model"})

	genErrs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripweave_generation_errors_total",
		Help: "Failed generation runs by classified kind",
	}, []string{"kind"})

	cacheEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripweave_cache_events_total",
		Help: "Generation cache hits and misses",
	}, []string{"event"})

	httpReqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tripweave_http_requests_total",
		Help: "HTTP requests by method, route pattern, and status code",
	}, []string{"method", "route", "code"})

	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripweave_http_request_duration_seconds",
		Help:    "HTTP request duration by method and route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	reg.MustRegister(genReqs, genDur, attempts, advances, genErrs, cacheEvents, httpReqs, httpDur)

	return &Metrics{
		registry:           reg,
		GenerationRequests: genReqs,
		GenerationDuration: genDur,
		ModelAttempts:      attempts,
		CascadeAdvances:    advances,
		GenerationErrors:   genErrs,
		CacheEvents:        cacheEvents,
		HTTPRequests:       httpReqs,
		HTTPDuration:       httpDur,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAttempt counts one model invocation.
func (m *Metrics) ObserveAttempt(model, result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.ModelAttempts.WithLabelValues(model, result).Inc()
}

// ObserveAdvance counts the cascade giving up on a model.
func (m *Metrics) ObserveAdvance(model string) {
	if m == nil {
		return
	}
	m.CascadeAdvances.WithLabelValues(model).Inc()
}

// RecordGeneration records the terminal outcome of one generation run.
// kind is empty on success.
func (m *Metrics) RecordGeneration(outcome, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.GenerationRequests.WithLabelValues(outcome).Inc()
	m.GenerationDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	if kind != "" {
		m.GenerationErrors.WithLabelValues(kind).Inc()
	}
}

// RecordCacheEvent counts a cache hit or miss.
func (m *Metrics) RecordCacheEvent(event string) {
	if m == nil {
		return
	}
	m.CacheEvents.WithLabelValues(event).Inc()
}

// RecordHTTPRequest records one served request. route is the chi route
// pattern, not the raw path, to keep cardinality bounded.
func (m *Metrics) RecordHTTPRequest(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
