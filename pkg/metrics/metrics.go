// Package metrics exposes the Prometheus metrics of the recipe cache.
// Collectors are defined in their own packages (cache, client, ratelimit)
// and registered with the default registry via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all collectors use.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer Handler serves.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - recipe_cache_hits_total (Counter): Lookups served from a valid entry
//   - recipe_cache_misses_total{reason} (Counter): Misses by reason (absent, expired, corrupt, unavailable)
//   - recipe_cache_errors_total{operation} (Counter): Store/codec failures (get, set, delete, encode)
//   - recipe_cache_fallbacks_total{result} (Counter): Fallback outcomes (ok, error, rejected)
//   - recipe_cache_shared_fetches_total (Counter): Callers served by another caller's in-flight fetch
//   - recipe_cache_entry_size_bytes (Histogram): Encoded size of written entries
//
// Request Metrics (pkg/client):
//   - recipe_api_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - recipe_api_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - recipe_api_errors_total{class} (Counter): Errors by class (client, quota, rate_limit, server, network)
//   - recipe_api_breaker_state (Gauge): Circuit breaker state (0 closed, 1 half-open, 2 open)
//
// Retry Metrics (pkg/client):
//   - recipe_api_retries_total{error_class} (Counter): Retry attempts by error class
//   - recipe_api_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - recipe_api_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Quota Metrics (pkg/ratelimit):
//   - recipe_api_quota_points_left (Gauge): Daily quota points left
//   - recipe_api_quota_blocks_total (Counter): Requests blocked with the quota exhausted
//   - recipe_api_quota_throttles_total (Counter): Requests delayed with the quota running low
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(recipe_cache_hits_total[5m])) /
//   (sum(rate(recipe_cache_hits_total[5m])) + sum(rate(recipe_cache_misses_total[5m])))
//
//   # Entries lost to corruption
//   rate(recipe_cache_misses_total{reason="corrupt"}[1h])
//
//   # Quota running low
//   recipe_api_quota_points_left < 10
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(recipe_api_request_duration_seconds_bucket[5m]))
