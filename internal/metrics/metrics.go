// Package metrics holds the Prometheus collectors shared by the API client
// and the kiosk service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "visitordesk"

// Registry bundles the collectors registered by this process.
type Registry struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	scans       *prometheus.CounterVec
	httpServed  *prometheus.CounterVec
}

// NewRegistry creates a registry with the process and Go runtime collectors
// plus the visitor desk collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Backend API calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Backend API call latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kiosk",
			Name:      "scans_total",
			Help:      "Check-in scans handled by the kiosk by result.",
		}, []string{"result"}),
		httpServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kiosk",
			Name:      "http_responses_total",
			Help:      "Kiosk HTTP responses by route and status code.",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.apiRequests,
		r.apiLatency,
		r.scans,
		r.httpServed,
	)
	return r
}

// ObserveAPICall records one backend call.
func (r *Registry) ObserveAPICall(operation, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.apiRequests.WithLabelValues(operation, outcome).Inc()
	r.apiLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveScan records one kiosk scan result.
func (r *Registry) ObserveScan(result string) {
	if r == nil {
		return
	}
	r.scans.WithLabelValues(result).Inc()
}

// ObserveResponse records one kiosk HTTP response.
func (r *Registry) ObserveResponse(route string, status int) {
	if r == nil {
		return
	}
	r.httpServed.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
