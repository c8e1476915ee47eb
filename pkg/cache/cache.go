package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/recipe-cache/pkg/kvstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache or the
	// entry has expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the stored entry is corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrInvalidKey is returned for an empty cache key.
	ErrInvalidKey = errors.New("cache key must not be empty")

	// ErrInvalidTTL is returned for a non-positive TTL.
	ErrInvalidTTL = errors.New("cache ttl must be positive")

	// ErrNilFetcher is returned when no fallback is supplied.
	ErrNilFetcher = errors.New("cache fetcher must not be nil")
)

// Fetcher produces fresh data when no valid entry exists.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Config holds the cache configuration.
type Config struct {
	// Store is the durable store entries are persisted into (required).
	Store kvstore.Store

	// Logger overrides the default component logger.
	Logger *zerolog.Logger

	// Now overrides the clock used for writtenAt and expiry checks.
	Now func() time.Time

	// SingleFlight makes concurrent misses on the same key share one
	// fallback call. Off by default: every concurrent miss fetches on its
	// own and the last write wins.
	SingleFlight bool
}

// Cache is a TTL read-through cache over a kvstore.Store.
type Cache struct {
	store        kvstore.Store
	logger       zerolog.Logger
	now          func() time.Time
	singleFlight bool
	flights      singleflight.Group
}

// New creates a cache over cfg.Store.
func New(cfg Config) (*Cache, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	logger := log.With().Str("component", "cache").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Cache{
		store:        cfg.Store,
		logger:       logger,
		now:          now,
		singleFlight: cfg.SingleFlight,
	}, nil
}

// Option tunes a single GetOrFetch or FetchAndCache call.
type Option[T any] func(*options[T])

type options[T any] struct {
	cacheable func(T) bool
}

// WithCacheable only persists fallback results for which fn returns true.
// Rejected results are still returned to the caller.
func WithCacheable[T any](fn func(T) bool) Option[T] {
	return func(o *options[T]) {
		o.cacheable = fn
	}
}

// NonEmpty is a cacheable predicate that rejects empty slices.
func NonEmpty[E any](v []E) bool {
	return len(v) > 0
}

// GetOrFetch returns the cached value for key if present and unexpired.
// Otherwise it calls fetch, persists the result with expiry now+ttl and
// returns it.
//
// Unreadable, corrupted or expired entries count as misses. Corrupted keys
// are removed; expired ones stay until the next write replaces them. Errors
// from fetch are returned to the caller wrapped with the key. A failed write
// is logged and never fails the call.
func GetOrFetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch Fetcher[T], opts ...Option[T]) (T, error) {
	var zero T
	if err := validate(key, ttl); err != nil {
		return zero, err
	}
	if fetch == nil {
		return zero, ErrNilFetcher
	}

	// Fast path: one store read, no fallback
	if value, err := Lookup[T](ctx, c, key, ttl); err == nil {
		return value, nil
	}

	if c.singleFlight {
		return sharedFetch(ctx, c, key, ttl, fetch, opts)
	}
	return fetchAndCache(ctx, c, key, ttl, fetch, opts)
}

// FetchAndCache calls fetch unconditionally and persists the result,
// replacing whatever is stored under key.
func FetchAndCache[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch Fetcher[T], opts ...Option[T]) (T, error) {
	var zero T
	if err := validate(key, ttl); err != nil {
		return zero, err
	}
	if fetch == nil {
		return zero, ErrNilFetcher
	}
	return fetchAndCache(ctx, c, key, ttl, fetch, opts)
}

// Put stores value under key with expiry now+ttl.
func Put[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	if err := validate(key, ttl); err != nil {
		return err
	}

	data, err := encodeEntry(value, c.now(), ttl)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		return err
	}

	if err := c.store.Set(ctx, key, data); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("store set %q: %w", key, err)
	}

	EntrySize.Observe(float64(len(data)))
	return nil
}

// Lookup returns the unexpired value stored under key.
//
// It returns ErrCacheMiss when the key is absent or expired, an error
// wrapping ErrInvalidEntry when the stored value cannot be decoded into T,
// or the wrapped store error. ttl is only used for legacy timestamp-form
// entries, whose expiry is timestamp+ttl.
func Lookup[T any](ctx context.Context, c *Cache, key string, ttl time.Duration) (T, error) {
	var zero T
	if err := validate(key, ttl); err != nil {
		return zero, err
	}

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		CacheMisses.WithLabelValues("unavailable").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed, treating as miss")
		return zero, fmt.Errorf("store get %q: %w", key, err)
	}
	if !ok {
		CacheMisses.WithLabelValues("absent").Inc()
		c.logger.Debug().Str("key", key).Msg("Cache miss")
		return zero, ErrCacheMiss
	}

	entry, err := decodeEntry[T](raw, ttl)
	if err != nil {
		CacheMisses.WithLabelValues("corrupt").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Corrupted cache entry, removing")
		c.remove(ctx, key)
		return zero, fmt.Errorf("key %q: %w", key, err)
	}

	now := c.now()
	if !entry.IsValid(now) {
		CacheMisses.WithLabelValues("expired").Inc()
		// Not removed: the key may already hold a newer entry
		c.logger.Debug().
			Str("key", key).
			Time("expiry", entry.Expiry).
			Msg("Cache entry expired")
		return zero, ErrCacheMiss
	}

	CacheHits.Inc()
	c.logger.Debug().
		Str("key", key).
		Bool("cache_hit", true).
		Dur("ttl", entry.TTL(now)).
		Msg("Serving from cache")

	return entry.Value, nil
}

func fetchAndCache[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch Fetcher[T], opts []Option[T]) (T, error) {
	var o options[T]
	for _, opt := range opts {
		opt(&o)
	}

	value, err := fetch(ctx)
	if err != nil {
		FallbackResults.WithLabelValues("error").Inc()
		c.logger.Debug().Err(err).Str("key", key).Msg("Fallback failed")
		var zero T
		return zero, fmt.Errorf("fetch %q: %w", key, err)
	}

	if o.cacheable != nil && !o.cacheable(value) {
		FallbackResults.WithLabelValues("rejected").Inc()
		c.logger.Debug().Str("key", key).Msg("Fallback result not cacheable, skipping write")
		return value, nil
	}
	FallbackResults.WithLabelValues("ok").Inc()

	// The value is already in hand; the write must finish even if the
	// caller stops waiting.
	if err := Put(context.WithoutCancel(ctx), c, key, value, ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to persist cache entry")
		return value, nil
	}

	c.logger.Debug().
		Str("key", key).
		Dur("ttl", ttl).
		Msg("Cached fallback result")

	return value, nil
}

// sharedFetch runs fetchAndCache at most once per key at a time. A caller
// whose context ends stops waiting; the flight itself runs on and persists.
func sharedFetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch Fetcher[T], opts []Option[T]) (T, error) {
	var zero T

	ch := c.flights.DoChan(key, func() (any, error) {
		return fetchAndCache(context.WithoutCancel(ctx), c, key, ttl, fetch, opts)
	})

	select {
	case res := <-ch:
		if res.Shared {
			SharedFetches.Inc()
		}
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Val == nil {
			return zero, nil
		}
		value, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("cache: key %q shared by incompatible types (got %T)", key, res.Val)
		}
		return value, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Cache) remove(ctx context.Context, key string) {
	if err := c.store.Remove(context.WithoutCancel(ctx), key); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to remove cache entry")
	}
}

func validate(key string, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
