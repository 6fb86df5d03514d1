// Package metrics provides the Prometheus registry reference for the
// recruiting client. All metrics are defined in their respective packages
// (pagination, client, cache, ratelimit) to maintain modularity and avoid
// circular dependencies.
//
// This package exposes the handler serving them and documents what exists.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the registered metrics.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Pagination Metrics (pkg/pagination):
//   - recruit_page_fetches_total{list, kind, outcome} (Counter): Page requests by kind (initial, next, count) and outcome
//   - recruit_page_fetch_duration_seconds{list} (Histogram): Page request duration
//   - recruit_page_items_received_total{list} (Counter): Items received in pages
//   - recruit_scroll_sentinel_fires_total{list} (Counter): Next-page loads triggered by the scroll sentinel
//
// Rate Limit Metrics (pkg/ratelimit):
//   - recruit_rate_limit_strikes (Gauge): Consecutive 429/503 responses
//   - recruit_rate_limit_blocks_total (Counter): Requests blocked during server back-off
//   - recruit_rate_limit_throttles_total (Counter): Requests delayed after repeated strikes
//   - recruit_rate_limit_wait_seconds (Histogram): Time spent waiting for the token bucket
//
// Cache Metrics (pkg/cache):
//   - recruit_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - recruit_cache_misses_total (Counter): Cache misses
//   - recruit_cache_entry_size_bytes (Histogram): Size of stored entries
//   - recruit_304_responses_total (Counter): 304 Not Modified responses
//   - recruit_conditional_requests_total (Counter): Conditional requests sent
//   - recruit_cache_purged_total (Counter): Entries removed by invalidation
//   - recruit_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - recruit_requests_total{endpoint, status} (Counter): Total requests by endpoint and HTTP status
//   - recruit_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - recruit_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - recruit_retries_total{error_class} (Counter): Retry attempts by error class
//   - recruit_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - recruit_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Next-page failure rate
//   sum(rate(recruit_page_fetches_total{kind="next",outcome="error"}[5m])) /
//   sum(rate(recruit_page_fetches_total{kind="next"}[5m]))
//
//   # Server back-off active
//   recruit_rate_limit_strikes > 0
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(recruit_request_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(recruit_304_responses_total[5m]) / rate(recruit_requests_total[5m])
