package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipe-cache.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
	if !strings.HasSuffix(cfg.Store.SQLitePath, "cache.db") {
		t.Errorf("Store.SQLitePath = %q", cfg.Store.SQLitePath)
	}
	if cfg.Cache.ListTTL != 24*time.Hour {
		t.Errorf("Cache.ListTTL = %v, want 24h", cfg.Cache.ListTTL)
	}
	if cfg.Cache.RecipeTTL != 6*time.Hour {
		t.Errorf("Cache.RecipeTTL = %v, want 6h", cfg.Cache.RecipeTTL)
	}
	if cfg.API.Cuisine != "Indian" || cfg.API.PageSize != 10 || cfg.API.HealthyMaxCalories != 300 {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.API.BreakerThreshold != 5 {
		t.Errorf("API.BreakerThreshold = %d, want 5", cfg.API.BreakerThreshold)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("Server.Address = %q", cfg.Server.Address)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
api:
  cuisine: Thai
  page_size: 25
store:
  backend: redis
  redis_addr: cache:6379
cache:
  list_ttl: 12h
  single_flight: true
log:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Cuisine != "Thai" || cfg.API.PageSize != 25 {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.Store.Backend != BackendRedis || cfg.Store.RedisAddr != "cache:6379" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Cache.ListTTL != 12*time.Hour || !cfg.Cache.SingleFlight {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	// Untouched keys keep their defaults
	if cfg.Cache.RecipeTTL != 6*time.Hour {
		t.Errorf("Cache.RecipeTTL = %v, want 6h", cfg.Cache.RecipeTTL)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Pretty {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: redis\n")

	t.Setenv("RECIPE_STORE_BACKEND", "memory")
	t.Setenv("RECIPE_API_KEY", "env-key")
	t.Setenv("RECIPE_CACHE_RECIPE_TTL", "90m")
	t.Setenv("RECIPE_CACHE_CACHE_EMPTY_LISTS", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Backend != BackendMemory {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.API.Key != "env-key" {
		t.Errorf("API.Key = %q, want env-key", cfg.API.Key)
	}
	if cfg.Cache.RecipeTTL != 90*time.Minute {
		t.Errorf("Cache.RecipeTTL = %v, want 90m", cfg.Cache.RecipeTTL)
	}
	if !cfg.Cache.CacheEmptyLists {
		t.Error("Cache.CacheEmptyLists = false, want true")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "cache: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		cfg.Store.Backend = BackendMemory
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "unknown backend", modify: func(c *Config) { c.Store.Backend = "etcd" }, wantErr: "store.backend"},
		{name: "sqlite without path", modify: func(c *Config) {
			c.Store.Backend = BackendSQLite
			c.Store.SQLitePath = ""
		}, wantErr: "sqlite_path"},
		{name: "redis without addr", modify: func(c *Config) {
			c.Store.Backend = BackendRedis
			c.Store.RedisAddr = ""
		}, wantErr: "redis_addr"},
		{name: "zero list ttl", modify: func(c *Config) { c.Cache.ListTTL = 0 }, wantErr: "ttls"},
		{name: "negative recipe ttl", modify: func(c *Config) { c.Cache.RecipeTTL = -time.Second }, wantErr: "ttls"},
		{name: "zero concurrency", modify: func(c *Config) { c.Cache.WarmConcurrency = 0 }, wantErr: "warm_concurrency"},
		{name: "page size too large", modify: func(c *Config) { c.API.PageSize = 101 }, wantErr: "page_size"},
		{name: "bad log level", modify: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLogConfig_Logging(t *testing.T) {
	got := LogConfig{Level: "warn", Pretty: true}.Logging()
	if got.Level != "warn" || !got.Pretty || got.Output == nil {
		t.Errorf("Logging() = %+v", got)
	}
}
