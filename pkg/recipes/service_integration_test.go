//go:build integration

package recipes

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/recipe-cache/internal/testutil"
	"github.com/Sternrassler/recipe-cache/pkg/cache"
	"github.com/Sternrassler/recipe-cache/pkg/client"
	"github.com/Sternrassler/recipe-cache/pkg/kvstore"
	"github.com/Sternrassler/recipe-cache/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*kvstore.RedisStore, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	store := kvstore.NewRedisStore(redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	}))

	cleanup := func() {
		store.Close()
		container.Terminate(ctx)
	}

	return store, cleanup
}

// testTransport sends every request to the mock server.
type testTransport struct {
	mock *testutil.MockRecipeAPI
}

func (t *testTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = strings.TrimPrefix(t.mock.URL(), "http://")
	return http.DefaultTransport.RoundTrip(req)
}

// newRedisService wires a service against the production base URL with the
// transport redirected to the mock.
func newRedisService(t *testing.T, store kvstore.Store, mock *testutil.MockRecipeAPI, now func() time.Time) *Service {
	t.Helper()

	api, err := client.New(client.DefaultConfig(store, testutil.MockAPIKey))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { api.Close() })
	api.SetHTTPClient(&http.Client{
		Transport: &testTransport{mock: mock},
		Timeout:   30 * time.Second,
	})

	logger := zerolog.Nop()
	c, err := cache.New(cache.Config{Store: store, Logger: &logger, Now: now, SingleFlight: true})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}

	cfg := DefaultConfig(c, api)
	cfg.Logger = &logger
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return svc
}

// TestFullFlow covers quota check, miss, API request and the write into Redis.
func TestFullFlow(t *testing.T) {
	store, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockRecipeAPI()
	defer mock.Close()

	svc := newRedisService(t, store, mock, nil)
	ctx := context.Background()

	popular, err := svc.Popular(ctx)
	if err != nil {
		t.Fatalf("Popular failed: %v", err)
	}
	if len(popular) != 2 || popular[0].Title != "Popular 1" {
		t.Errorf("popular = %+v", popular)
	}

	raw, ok, err := store.Get(ctx, PopularKey)
	if err != nil || !ok {
		t.Fatalf("entry not in Redis: ok=%v err=%v", ok, err)
	}
	if !strings.Contains(raw, `"expiry"`) {
		t.Errorf("stored entry = %s, want canonical form", raw)
	}

	// Quota state shares the store
	if _, ok, _ := store.Get(ctx, ratelimit.StateKey); !ok {
		t.Error("quota state not in Redis")
	}

	if _, err := svc.Popular(ctx); err != nil {
		t.Fatalf("second Popular failed: %v", err)
	}
	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("API requests = %d, want 1", n)
	}
}

// TestSurvivesRestart checks a second process reads what the first wrote.
func TestSurvivesRestart(t *testing.T) {
	store, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockRecipeAPI()
	defer mock.Close()

	ctx := context.Background()

	first := newRedisService(t, store, mock, nil)
	if _, err := first.Warm(ctx, []int{101, 102, 103}); err != nil {
		t.Fatalf("Warm failed: %v", err)
	}

	second := newRedisService(t, store, mock, nil)
	for _, id := range []int{101, 102, 103} {
		r, err := second.ByID(ctx, id)
		if err != nil {
			t.Fatalf("ByID(%d) failed: %v", id, err)
		}
		if r.ID != id {
			t.Errorf("ByID(%d) = %+v", id, r)
		}
	}

	if n := mock.GetRequestCount(); n != 3 {
		t.Errorf("API requests = %d, want 3", n)
	}
}

// TestExpiration uses an injected clock instead of sleeping past the TTL.
func TestExpiration(t *testing.T) {
	store, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockRecipeAPI()
	defer mock.Close()

	clock := testutil.NewClock(time.Now())
	svc := newRedisService(t, store, mock, clock.Now)
	ctx := context.Background()

	if _, err := svc.ByID(ctx, 7); err != nil {
		t.Fatalf("ByID failed: %v", err)
	}

	clock.Advance(5 * time.Hour)
	if _, err := svc.ByID(ctx, 7); err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if n := mock.GetPathCount("/recipes/7/information"); n != 1 {
		t.Errorf("requests within TTL = %d, want 1", n)
	}

	clock.Advance(2 * time.Hour)
	if _, err := svc.ByID(ctx, 7); err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if n := mock.GetPathCount("/recipes/7/information"); n != 2 {
		t.Errorf("requests after TTL = %d, want 2", n)
	}
}

// TestCorruptEntryHeals overwrites an entry with garbage behind the cache.
func TestCorruptEntryHeals(t *testing.T) {
	store, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockRecipeAPI()
	defer mock.Close()

	svc := newRedisService(t, store, mock, nil)
	ctx := context.Background()

	if err := store.Set(ctx, HealthyKey, "{not json"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	healthy, err := svc.Healthy(ctx)
	if err != nil {
		t.Fatalf("Healthy failed: %v", err)
	}
	if len(healthy) != 2 {
		t.Errorf("healthy = %+v", healthy)
	}

	raw, _, _ := store.Get(ctx, HealthyKey)
	if !strings.Contains(raw, "Healthy 1") {
		t.Errorf("entry not rewritten: %s", raw)
	}
}

// TestQuotaExhaustedBlocks checks a 402 stops further requests for the day.
func TestQuotaExhaustedBlocks(t *testing.T) {
	store, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockRecipeAPI()
	defer mock.Close()
	mock.SetResponse("/recipes/complexSearch", testutil.NewQuotaExceededResponse())

	svc := newRedisService(t, store, mock, nil)
	ctx := context.Background()

	if _, err := svc.Popular(ctx); !errors.Is(err, ratelimit.ErrQuotaExhausted) {
		t.Fatalf("Popular error = %v, want ErrQuotaExhausted", err)
	}

	// Blocked locally, no request reaches the API
	if _, err := svc.ByID(ctx, 1); !errors.Is(err, ratelimit.ErrQuotaExhausted) {
		t.Errorf("ByID error = %v, want ErrQuotaExhausted", err)
	}
	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("API requests = %d, want 1", n)
	}
}
