// Package metrics provides Prometheus metrics for the RxNorm search API.
// It exports HTTP server metrics (request totals, latency, in-flight requests),
// upstream RxNav client metrics, and search pipeline metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//   - rxnav_requests_total: Counter with endpoint and status labels
//   - rxnav_request_duration_seconds: Histogram with endpoint label
//   - search_records_dropped_total: Counter with reason label
//   - search_results: Histogram of result counts per search
//   - search_cache_total: Counter with result label (hit, miss)
//   - search_cache_entries: Gauge of cached searches after each sweep
//   - rxnav_up: Gauge set to 1 when the last probe succeeded
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (client IPs currently tracked)",
		},
	)

	UpstreamRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rxnav_requests_total",
			Help: "Total requests sent to RxNav",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rxnav_request_duration_seconds",
			Help:    "RxNav request latency",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	SearchRecordsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_records_dropped_total",
			Help: "Records dropped during aggregation",
		},
		[]string{"reason"},
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "search_results",
			Help:    "Number of records returned per search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	SearchCacheTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_total",
			Help: "Search cache lookups",
		},
		[]string{"result"},
	)

	SearchCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "search_cache_entries",
			Help: "Cached search results",
		},
	)

	UpstreamUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rxnav_up",
			Help: "Whether the last RxNav probe succeeded",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(UpstreamRequestTotals)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(SearchRecordsDropped)
	prometheus.MustRegister(SearchResults)
	prometheus.MustRegister(SearchCacheTotals)
	prometheus.MustRegister(SearchCacheEntries)
	prometheus.MustRegister(UpstreamUp)
}
