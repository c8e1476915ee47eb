package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts lookups served from a valid entry.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_cache_hits_total",
			Help: "Total number of recipe cache hits",
		},
	)

	// CacheMisses counts lookups that fell through to the fallback, by reason.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_cache_misses_total",
			Help: "Total number of recipe cache misses by reason",
		},
		[]string{"reason"}, // "absent", "expired", "corrupt", "unavailable"
	)

	// CacheErrors tracks store and codec failures.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "encode"
	)

	// FallbackResults counts fallback invocations by outcome.
	FallbackResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_cache_fallbacks_total",
			Help: "Total number of fallback invocations by result",
		},
		[]string{"result"}, // "ok", "error", "rejected"
	)

	// SharedFetches counts callers that received a result from another
	// caller's in-flight fetch.
	SharedFetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_cache_shared_fetches_total",
			Help: "Total number of callers served by a shared in-flight fetch",
		},
	)

	// EntrySize observes the encoded size of written entries.
	EntrySize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recipe_cache_entry_size_bytes",
			Help:    "Size of encoded cache entries in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
	)
)
