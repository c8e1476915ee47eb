// Package config loads recipe-proxy settings from an optional YAML file and
// RECIPE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sternrassler/recipe-cache/pkg/logging"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// EnvPrefix prefixes every environment override, e.g. RECIPE_STORE_BACKEND.
const EnvPrefix = "RECIPE"

// Config holds all configuration.
type Config struct {
	API    APIConfig    `mapstructure:"api"`
	Store  StoreConfig  `mapstructure:"store"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

// APIConfig configures the recipe API client.
type APIConfig struct {
	// Key is the API key. Empty means: look it up in the OS keyring.
	Key                string        `mapstructure:"key"`
	BaseURL            string        `mapstructure:"base_url"`
	Cuisine            string        `mapstructure:"cuisine"`
	PageSize           int           `mapstructure:"page_size"`
	HealthyMaxCalories int           `mapstructure:"healthy_max_calories"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	InitialBackoff     time.Duration `mapstructure:"initial_backoff"`
	BreakerThreshold   uint32        `mapstructure:"breaker_threshold"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout"`
}

// StoreConfig selects and configures the durable store.
type StoreConfig struct {
	Backend       string `mapstructure:"backend"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// CacheConfig holds the cache policy.
type CacheConfig struct {
	ListTTL         time.Duration `mapstructure:"list_ttl"`
	RecipeTTL       time.Duration `mapstructure:"recipe_ttl"`
	SingleFlight    bool          `mapstructure:"single_flight"`
	CacheEmptyLists bool          `mapstructure:"cache_empty_lists"`
	WarmConcurrency int           `mapstructure:"warm_concurrency"`
	WarmTimeout     time.Duration `mapstructure:"warm_timeout"`
}

// ServerConfig configures the HTTP server of the serve command.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Logging converts the log section to a logging.Config.
func (c LogConfig) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Level)
	cfg.Pretty = c.Pretty
	return cfg
}

// Load reads configuration. With an empty path, recipe-cache.yaml is looked
// up in the working directory and the user config directory and may be
// absent. An explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("recipe-cache")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "recipe-cache"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// RECIPE_STORE_BACKEND overrides store.backend
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings the commands depend on. The API key is not
// checked here because it may come from the keyring.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("store.backend must be one of sqlite, redis, memory (got %q)", c.Store.Backend)
	}

	if c.Cache.ListTTL <= 0 || c.Cache.RecipeTTL <= 0 {
		return fmt.Errorf("cache ttls must be positive (list %v, recipe %v)", c.Cache.ListTTL, c.Cache.RecipeTTL)
	}
	if c.Cache.WarmConcurrency < 1 {
		return fmt.Errorf("cache.warm_concurrency must be at least 1 (got %d)", c.Cache.WarmConcurrency)
	}
	if c.API.PageSize < 1 || c.API.PageSize > 100 {
		return fmt.Errorf("api.page_size must be between 1 and 100 (got %d)", c.API.PageSize)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// API
	v.SetDefault("api.key", "")
	v.SetDefault("api.base_url", "https://api.spoonacular.com")
	v.SetDefault("api.cuisine", "Indian")
	v.SetDefault("api.page_size", 10)
	v.SetDefault("api.healthy_max_calories", 300)
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.initial_backoff", time.Second)
	v.SetDefault("api.breaker_threshold", 5)
	v.SetDefault("api.breaker_timeout", 30*time.Second)

	// Store
	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.sqlite_path", defaultSQLitePath())
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)

	// Cache
	v.SetDefault("cache.list_ttl", 24*time.Hour)
	v.SetDefault("cache.recipe_ttl", 6*time.Hour)
	v.SetDefault("cache.single_flight", false)
	v.SetDefault("cache.cache_empty_lists", false)
	v.SetDefault("cache.warm_concurrency", 5)
	v.SetDefault("cache.warm_timeout", 15*time.Second)

	// Server
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 45*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func defaultSQLitePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "recipe-cache.db"
	}
	return filepath.Join(dir, "recipe-cache", "cache.db")
}
