// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SamplesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshcore_samples_ingested_total",
			Help: "Ping samples persisted, by ingest mode (single, batch)",
		},
		[]string{"mode"},
	)

	SamplesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meshcore_samples_pruned_total",
			Help: "Ping samples deleted by retention pruning",
		},
	)

	HeatmapQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meshcore_heatmap_query_duration_seconds",
			Help:    "Time to build a heatmap response",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"metric"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meshcore_store_operation_duration_seconds",
			Help:    "Duration of store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshcore_store_operation_errors_total",
			Help: "Failed store operations",
		},
		[]string{"backend", "operation"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshcore_api_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meshcore_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meshcore_remote_requests_total",
			Help: "Outbound requests by target and outcome",
		},
		[]string{"target", "outcome"},
	)
)

// ObserveStore records one store operation. Pass the operation's error so
// failures are counted.
func ObserveStore(backend, operation string, start time.Time, err error) {
	StoreOperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(backend, operation).Inc()
	}
}
