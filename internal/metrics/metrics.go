// Package metrics exposes Prometheus instrumentation for the report API.
//
// Metrics are served at /metrics:
//   - http_requests_total{method,route,status}
//   - http_request_duration_seconds{method,route}
//   - report_store_errors_total{operation,collection}
//   - report_events_failed_total{event}
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and transport status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "route"},
	)

	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_store_errors_total",
			Help: "Document store failures by operation and collection",
		},
		[]string{"operation", "collection"},
	)

	EventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_events_failed_total",
			Help: "Report change events that could not be published",
		},
		[]string{"event"},
	)
)

// RecordStoreError counts a failed store operation
func RecordStoreError(operation, collection string) {
	StoreErrorsTotal.WithLabelValues(operation, collection).Inc()
}

// RecordEventFailure counts an event publish failure
func RecordEventFailure(event string) {
	EventsFailedTotal.WithLabelValues(event).Inc()
}
