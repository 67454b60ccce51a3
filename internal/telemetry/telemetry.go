// Package telemetry exposes Prometheus collectors for the index service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	probesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mxindex_probes_total",
			Help: "Total metadata probes issued, labeled by probe kind and outcome.",
		},
		[]string{"probe", "outcome"},
	)

	indexAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mxindex_index_attempts_total",
			Help: "Total indexing pipeline executions, labeled by status.",
		},
		[]string{"status"},
	)

	indexDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mxindex_index_duration_seconds",
			Help:    "Histogram of full indexing pipeline latencies.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mxindex_cache_lookups_total",
			Help: "Total cache lookups, labeled by result (hit/miss).",
		},
		[]string{"result"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveProbe increments the probe counter for one probe outcome.
func ObserveProbe(probe, outcome string) {
	probesTotal.WithLabelValues(probe, outcome).Inc()
}

// ObserveIndex records one pipeline execution and its duration.
func ObserveIndex(status string, duration time.Duration) {
	indexAttemptsTotal.WithLabelValues(status).Inc()
	indexDurationSeconds.Observe(duration.Seconds())
}

// ObserveCacheLookup records a cache hit or miss.
func ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
