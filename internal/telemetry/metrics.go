package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dispatcher's Prometheus instrumentation: a request
// counter labeled by the deciding filter kind, its outcome, and the
// upstream status class; an upstream latency histogram; and an
// internal-error counter feeding the catch-all error path.
type Metrics struct {
	requests        *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
	internalErrors  prometheus.Counter
}

// NewMetrics registers the dispatcher's collectors against registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sealproxy_requests_total",
			Help: "Requests handled by the filter pipeline, by filter kind, outcome, and upstream status class.",
		}, []string{"filter_kind", "outcome", "status_class"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sealproxy_upstream_latency_seconds",
			Help:    "Time spent in the filter pipeline for requests forwarded to the upstream, including the upstream round trip and any filter work before it.",
			Buckets: prometheus.DefBuckets,
		}),
		internalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sealproxy_internal_errors_total",
			Help: "Requests the dispatcher converted to 401 after an uncaught pipeline error.",
		}),
	}
	registry.MustRegister(m.requests, m.upstreamLatency, m.internalErrors)
	return m
}

// ObserveOutcome increments the request counter for one dispatcher pass.
// filterKind is the deciding filter's config kind (empty for an exhausted
// chain; for an uncaught error, the kind of the filter whose action
// failed), outcome is allow/deny/redirect, and
// statusClass is the upstream's status class ("2xx".."5xx", empty if the
// request never reached the upstream).
func (m *Metrics) ObserveOutcome(filterKind, outcome, statusClass string) {
	m.requests.WithLabelValues(filterKind, outcome, statusClass).Inc()
}

// ObserveUpstreamLatency records d in the upstream latency histogram. The
// dispatcher passes the whole filter pipeline's duration for a forwarded
// request, not the upstream round trip alone.
func (m *Metrics) ObserveUpstreamLatency(d time.Duration) {
	m.upstreamLatency.Observe(d.Seconds())
}

// ObserveInternalError increments the internal-error counter.
func (m *Metrics) ObserveInternalError() {
	m.internalErrors.Inc()
}

// Handler serves the Prometheus text exposition format for registry. It
// is meant to be mounted on a listener separate from the proxy's main
// listener so metrics scraping never passes through the filter pipeline.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
