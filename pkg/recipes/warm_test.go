package recipes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func sortedIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func TestWarm_LoadsAll(t *testing.T) {
	api := newFakeAPI()
	svc, store, _ := newTestService(t, api)

	ids := []int{10, 11, 12, 13, 14, 15, 16, 17}
	got, err := svc.Warm(context.Background(), ids)
	if err != nil {
		t.Fatalf("Warm() error = %v", err)
	}

	if diff := cmp.Diff(ids, sortedIDs(got)); diff != "" {
		t.Errorf("loaded ids mismatch (-want +got):\n%s", diff)
	}
	if store.Len() != len(ids) {
		t.Errorf("stored %d entries, want %d", store.Len(), len(ids))
	}

	// A second warm-up is served from the cache
	if _, err := svc.Warm(context.Background(), ids); err != nil {
		t.Fatalf("second Warm() error = %v", err)
	}
	for _, id := range ids {
		if n := api.count(fmt.Sprintf("recipe:%d", id)); n != 1 {
			t.Errorf("recipe %d fetched %d times, want 1", id, n)
		}
	}
}

func TestWarm_Deduplicates(t *testing.T) {
	api := newFakeAPI()
	svc, _, _ := newTestService(t, api)

	got, err := svc.Warm(context.Background(), []int{5, 5, 6, 5})
	if err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d recipes, want 2", len(got))
	}
	if n := api.count("recipe:5"); n != 1 {
		t.Errorf("recipe 5 fetched %d times, want 1", n)
	}
}

func TestWarm_BoundedConcurrency(t *testing.T) {
	api := newFakeAPI()
	api.delay = 20 * time.Millisecond
	svc, _, _ := newTestService(t, api, func(c *Config) { c.WarmConcurrency = 3 })

	ids := make([]int, 12)
	for i := range ids {
		ids[i] = i + 1
	}

	if _, err := svc.Warm(context.Background(), ids); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}
	if max := api.maxInFlight.Load(); max > 3 {
		t.Errorf("max in-flight = %d, want <= 3", max)
	}
}

func TestWarm_PartialResults(t *testing.T) {
	api := newFakeAPI()
	boom := errors.New("upstream failure")
	api.failIDs[21] = boom
	svc, _, _ := newTestService(t, api)

	got, err := svc.Warm(context.Background(), []int{20, 21, 22, -1})
	if !errors.Is(err, boom) && !errors.Is(err, ErrInvalidID) {
		t.Fatalf("Warm() error = %v, want first failure", err)
	}

	if diff := cmp.Diff([]int{20, 22}, sortedIDs(got)); diff != "" {
		t.Errorf("loaded ids mismatch (-want +got):\n%s", diff)
	}
}

func TestWarm_ContextCancelled(t *testing.T) {
	api := newFakeAPI()
	svc, _, _ := newTestService(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := svc.Warm(ctx, []int{1, 2, 3})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Warm() error = %v, want context.Canceled", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d recipes, want 0", len(got))
	}
}

func TestWarm_Empty(t *testing.T) {
	svc, _, _ := newTestService(t, newFakeAPI())

	got, err := svc.Warm(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Errorf("Warm(nil) = (%v, %v), want empty and nil", got, err)
	}
}
