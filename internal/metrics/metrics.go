// Package metrics instruments the client's remote gateway with Prometheus
// collectors on a private registry.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the TeamTask client.
// All recording methods are safe on a nil receiver so components can run
// unmetered.
type Metrics struct {
	registry *prometheus.Registry

	// Remote gateway metrics.
	RemoteRequestsTotal   *prometheus.CounterVec
	RemoteRequestDuration *prometheus.HistogramVec

	// Session metrics.
	AuthFailuresTotal *prometheus.CounterVec

	// Stale-response discards from the session epoch guard.
	StaleDiscardsTotal *prometheus.CounterVec
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		RemoteRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamtask_remote_requests_total",
			Help: "Total number of requests issued to the TeamTask service.",
		}, []string{"method", "route", "status_code"}),

		RemoteRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "teamtask_remote_request_duration_seconds",
			Help:    "Remote request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamtask_auth_failures_total",
			Help: "Total number of failed authentication attempts.",
		}, []string{"operation"}),

		StaleDiscardsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamtask_stale_responses_discarded_total",
			Help: "Responses discarded because the session epoch moved while the request was in flight.",
		}, []string{"component"}),
	}

	reg.MustRegister(
		m.RemoteRequestsTotal,
		m.RemoteRequestDuration,
		m.AuthFailuresTotal,
		m.StaleDiscardsTotal,
	)

	return m
}

// Registry returns the private Prometheus registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRemoteRequest records one completed remote call. statusCode 0 means
// the request never produced an HTTP response (transport failure).
func (m *Metrics) ObserveRemoteRequest(method, route string, statusCode int, seconds float64) {
	if m == nil {
		return
	}
	m.RemoteRequestsTotal.WithLabelValues(method, route, fmt.Sprintf("%d", statusCode)).Inc()
	m.RemoteRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// IncAuthFailure increments the auth failure counter for the given operation.
func (m *Metrics) IncAuthFailure(operation string) {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.WithLabelValues(operation).Inc()
}

// IncStaleDiscard increments the stale-response discard counter.
func (m *Metrics) IncStaleDiscard(component string) {
	if m == nil {
		return
	}
	m.StaleDiscardsTotal.WithLabelValues(component).Inc()
}
