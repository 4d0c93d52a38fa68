package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce      sync.Once
	requestsTotal     *prometheus.CounterVec
	latencySeconds    *prometheus.HistogramVec
	auditEventsTotal  *prometheus.CounterVec
	auditDroppedTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arsip_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arsip_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		auditEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_events_recorded_total",
			Help: "Total number of audit events written to the tracking trail.",
		}, []string{"action_type", "source"})

		auditDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Total number of audit events dropped before reaching storage.",
		}, []string{"reason"})

		prometheus.MustRegister(requestsTotal, latencySeconds, auditEventsTotal, auditDroppedTotal)
	})
}

// Requests exposes the request counter.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the latency histogram.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// AuditEvents exposes the counter for recorded audit events.
func AuditEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return auditEventsTotal
}

// AuditDropped exposes the counter for dropped audit events. Audit writes
// are best effort; this counter is how failures stay observable.
func AuditDropped() *prometheus.CounterVec {
	RegisterMetrics()
	return auditDroppedTotal
}
