// Package cache provides a TTL read-through cache over a durable key-value
// store.
//
// The cache sits between callers and a remote source of truth:
//
// - One entry per key; a write replaces the previous entry whole
// - Validity (now < expiry) is checked lazily on read, never by a sweep
// - Corrupted entries are removed; expired ones are refetched and overwritten
// - Fallback errors reach the caller; write errors never do
// - Optional cacheable predicate (e.g. reject empty lists)
// - Optional per-key single-flight for concurrent misses
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	store, err := kvstore.OpenSQLite(ctx, "/var/lib/recipes/cache.db")
//	if err != nil {
//		return err
//	}
//
//	c, err := cache.New(cache.Config{Store: store})
//	if err != nil {
//		return err
//	}
//
//	recipes, err := cache.GetOrFetch(ctx, c, "popular_recipes", 24*time.Hour,
//		func(ctx context.Context) ([]client.RecipeSummary, error) {
//			return api.PopularRecipes(ctx)
//		},
//		cache.WithCacheable(cache.NonEmpty[client.RecipeSummary]),
//	)
//
// # URL Fallbacks
//
//	fetch := cache.URLFetcher(http.DefaultClient, searchURL,
//		cache.JSONField[[]client.RecipeSummary]("results"))
//	recipes, err := cache.GetOrFetch(ctx, c, "recipes_dessert", 24*time.Hour, fetch)
//
// # Entry Format
//
// Entries are written as {"value": ..., "writtenAt": ms, "expiry": ms}.
// Entries in the older {"data": ..., "timestamp": ms} form are still read;
// their expiry is timestamp plus the TTL of the reading call. They are
// rewritten in the current form on the next refresh.
//
// # Metrics
//
//   - recipe_cache_hits_total - Cache hits
//   - recipe_cache_misses_total{reason} - Misses (absent, expired, corrupt, unavailable)
//   - recipe_cache_errors_total{operation} - Store and codec errors
//   - recipe_cache_fallbacks_total{result} - Fallback outcomes (ok, error, rejected)
//   - recipe_cache_shared_fetches_total - Callers served by a shared fetch
//   - recipe_cache_entry_size_bytes - Encoded entry size
package cache
