// Package recipes binds the recipe API operations to named cache keys.
//
// List fetchers (popular, healthy, by category) are cached for ListTTL and
// single recipes for RecipeTTL. Empty lists are not cached unless
// CacheEmptyLists is set. Free-text search and random recipes bypass the
// cache.
package recipes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/recipe-cache/pkg/cache"
	"github.com/Sternrassler/recipe-cache/pkg/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrEmptyCategory is returned by ByCategory for a blank category.
	ErrEmptyCategory = errors.New("category must not be empty")

	// ErrInvalidID is returned for non-positive recipe IDs.
	ErrInvalidID = errors.New("recipe id must be positive")

	// ErrEmptyQuery is returned by Search for a blank query.
	ErrEmptyQuery = errors.New("search query must not be empty")
)

// API is the subset of the recipe API client the service uses.
type API interface {
	PopularRecipes(ctx context.Context) ([]client.RecipeSummary, error)
	HealthyRecipes(ctx context.Context) ([]client.RecipeSummary, error)
	RecipesByCategory(ctx context.Context, category string) ([]client.RecipeSummary, error)
	SearchRecipes(ctx context.Context, query string) ([]client.RecipeSummary, error)
	RecipeByID(ctx context.Context, id int) (client.Recipe, error)
	RandomRecipe(ctx context.Context) (client.Recipe, error)
}

// Config holds the service configuration.
type Config struct {
	Cache *cache.Cache
	API   API

	// TTLs per call site
	ListTTL   time.Duration
	RecipeTTL time.Duration

	// CacheEmptyLists persists empty list results too
	CacheEmptyLists bool

	// Warm-up
	WarmConcurrency int
	WarmTimeout     time.Duration

	Logger *zerolog.Logger
}

// DefaultConfig returns the default TTL policy: 24h for lists, 6h for
// single recipes.
func DefaultConfig(c *cache.Cache, api API) Config {
	return Config{
		Cache:           c,
		API:             api,
		ListTTL:         24 * time.Hour,
		RecipeTTL:       6 * time.Hour,
		WarmConcurrency: 5,
		WarmTimeout:     15 * time.Second,
	}
}

// Service serves recipe lists and recipes through the cache.
type Service struct {
	cache  *cache.Cache
	api    API
	config Config
	logger zerolog.Logger

	refresh bool
}

// NewService creates a recipe service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.API == nil {
		return nil, fmt.Errorf("api is required")
	}
	if cfg.ListTTL <= 0 || cfg.RecipeTTL <= 0 {
		return nil, fmt.Errorf("ttls must be positive (list %v, recipe %v)", cfg.ListTTL, cfg.RecipeTTL)
	}
	if cfg.WarmConcurrency <= 0 {
		cfg.WarmConcurrency = 5
	}
	if cfg.WarmTimeout <= 0 {
		cfg.WarmTimeout = 15 * time.Second
	}

	logger := log.With().Str("component", "recipes").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Service{
		cache:  cfg.Cache,
		api:    cfg.API,
		config: cfg,
		logger: logger,
	}, nil
}

// Refreshing returns a view of the service whose cached reads always call
// the API and overwrite the stored entry.
func (s *Service) Refreshing() *Service {
	r := *s
	r.refresh = true
	return &r
}

// Popular returns the popular recipes list.
func (s *Service) Popular(ctx context.Context) ([]client.RecipeSummary, error) {
	return s.list(ctx, PopularKey, s.api.PopularRecipes)
}

// Healthy returns the healthy recipes list.
func (s *Service) Healthy(ctx context.Context) ([]client.RecipeSummary, error) {
	return s.list(ctx, HealthyKey, s.api.HealthyRecipes)
}

// ByCategory returns the recipes of a meal category. Surrounding whitespace
// is dropped before the key is built.
func (s *Service) ByCategory(ctx context.Context, category string) ([]client.RecipeSummary, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, ErrEmptyCategory
	}
	return s.list(ctx, CategoryKey(category), func(ctx context.Context) ([]client.RecipeSummary, error) {
		return s.api.RecipesByCategory(ctx, category)
	})
}

// ByID returns one recipe.
func (s *Service) ByID(ctx context.Context, id int) (client.Recipe, error) {
	if id <= 0 {
		return client.Recipe{}, fmt.Errorf("%w (got %d)", ErrInvalidID, id)
	}

	fetch := func(ctx context.Context) (client.Recipe, error) {
		return s.api.RecipeByID(ctx, id)
	}
	// A recipe without an ID is not worth keeping
	valid := cache.WithCacheable(func(r client.Recipe) bool { return r.ID != 0 })

	if s.refresh {
		return cache.FetchAndCache(ctx, s.cache, RecipeKey(id), s.config.RecipeTTL, fetch, valid)
	}
	return cache.GetOrFetch(ctx, s.cache, RecipeKey(id), s.config.RecipeTTL, fetch, valid)
}

// Search runs a free-text search. Results are not cached.
func (s *Service) Search(ctx context.Context, query string) ([]client.RecipeSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	return s.api.SearchRecipes(ctx, query)
}

// Random returns a random recipe. It is not cached.
func (s *Service) Random(ctx context.Context) (client.Recipe, error) {
	return s.api.RandomRecipe(ctx)
}

func (s *Service) list(ctx context.Context, key string, fetch cache.Fetcher[[]client.RecipeSummary]) ([]client.RecipeSummary, error) {
	var opts []cache.Option[[]client.RecipeSummary]
	if !s.config.CacheEmptyLists {
		opts = append(opts, cache.WithCacheable(cache.NonEmpty[client.RecipeSummary]))
	}

	if s.refresh {
		s.logger.Debug().Str("key", key).Msg("Refreshing list")
		return cache.FetchAndCache(ctx, s.cache, key, s.config.ListTTL, fetch, opts...)
	}
	return cache.GetOrFetch(ctx, s.cache, key, s.config.ListTTL, fetch, opts...)
}
