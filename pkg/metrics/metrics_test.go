package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Sternrassler/recipe-cache/pkg/cache"
	_ "github.com/Sternrassler/recipe-cache/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry(t *testing.T) {
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
	if Gatherer != prometheus.DefaultGatherer {
		t.Error("Gatherer should be the default Prometheus gatherer")
	}
}

func TestCollectorsRegistered(t *testing.T) {
	cache.CacheHits.Inc()
	cache.CacheMisses.WithLabelValues("absent").Inc()

	families, err := Gatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := make(map[string]bool)
	for _, mf := range families {
		found[mf.GetName()] = true
	}

	for _, name := range []string{
		"recipe_cache_hits_total",
		"recipe_cache_misses_total",
		"recipe_api_quota_points_left",
		"recipe_api_quota_blocks_total",
	} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestHandler(t *testing.T) {
	cache.CacheHits.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "recipe_cache_hits_total") {
		t.Error("exposition missing recipe_cache_hits_total")
	}
}
