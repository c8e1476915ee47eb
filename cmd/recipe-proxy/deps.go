package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Sternrassler/recipe-cache/internal/config"
	"github.com/Sternrassler/recipe-cache/internal/credentials"
	"github.com/Sternrassler/recipe-cache/pkg/cache"
	"github.com/Sternrassler/recipe-cache/pkg/client"
	"github.com/Sternrassler/recipe-cache/pkg/kvstore"
	"github.com/Sternrassler/recipe-cache/pkg/logging"
	"github.com/Sternrassler/recipe-cache/pkg/recipes"
	"github.com/redis/go-redis/v9"
)

// deps is the wired object graph of one command run.
type deps struct {
	store   kvstore.Store
	api     *client.Client
	service *recipes.Service
}

// build opens the store and wires client, cache and service.
func (a *app) build(ctx context.Context) (*deps, error) {
	apiKey, err := a.keys.Resolve(a.cfg.API.Key, credentials.DefaultAccount)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return nil, fmt.Errorf("no API key: set RECIPE_API_KEY or run 'recipe-proxy auth login'")
		}
		return nil, fmt.Errorf("read API key: %w", err)
	}

	store, err := openStore(ctx, a.cfg.Store)
	if err != nil {
		return nil, err
	}

	api, err := client.New(clientConfig(a.cfg.API, store, apiKey))
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("create API client: %w", err)
	}

	cacheLogger := logging.NewLogger("cache")
	c, err := cache.New(cache.Config{
		Store:        store,
		Logger:       &cacheLogger,
		SingleFlight: a.cfg.Cache.SingleFlight,
	})
	if err != nil {
		api.Close()
		closeStore(store)
		return nil, fmt.Errorf("create cache: %w", err)
	}

	svcCfg := recipes.DefaultConfig(c, api)
	svcCfg.ListTTL = a.cfg.Cache.ListTTL
	svcCfg.RecipeTTL = a.cfg.Cache.RecipeTTL
	svcCfg.CacheEmptyLists = a.cfg.Cache.CacheEmptyLists
	svcCfg.WarmConcurrency = a.cfg.Cache.WarmConcurrency
	svcCfg.WarmTimeout = a.cfg.Cache.WarmTimeout

	svc, err := recipes.NewService(svcCfg)
	if err != nil {
		api.Close()
		closeStore(store)
		return nil, fmt.Errorf("create recipe service: %w", err)
	}

	return &deps{store: store, api: api, service: svc}, nil
}

// Close releases the client and the store.
func (d *deps) Close() {
	d.api.Close()
	closeStore(d.store)
}

func clientConfig(cfg config.APIConfig, store kvstore.Store, apiKey string) client.Config {
	cc := client.DefaultConfig(store, apiKey)
	cc.BaseURL = cfg.BaseURL
	cc.Cuisine = cfg.Cuisine
	cc.PageSize = cfg.PageSize
	cc.HealthyMaxCalories = cfg.HealthyMaxCalories
	cc.Timeout = cfg.Timeout
	cc.MaxRetries = cfg.MaxRetries
	cc.InitialBackoff = cfg.InitialBackoff
	cc.BreakerThreshold = cfg.BreakerThreshold
	cc.BreakerTimeout = cfg.BreakerTimeout
	return cc
}

func openStore(ctx context.Context, cfg config.StoreConfig) (kvstore.Store, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		store := kvstore.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}))
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return store, nil

	case config.BackendMemory:
		return kvstore.NewMemoryStore(), nil

	default:
		store, err := kvstore.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", cfg.SQLitePath, err)
		}
		return store, nil
	}
}

func closeStore(store kvstore.Store) {
	if c, ok := store.(io.Closer); ok {
		c.Close()
	}
}
