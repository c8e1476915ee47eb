package recipes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/recipe-cache/pkg/client"
	"golang.org/x/sync/errgroup"
)

// Warm loads the given recipes through the cache with at most
// WarmConcurrency requests in flight. Duplicate IDs are fetched once.
//
// All IDs are attempted even after a failure. The returned map holds every
// recipe that was loaded; the error is the first failure, if any.
func (s *Service) Warm(ctx context.Context, ids []int) (map[int]client.Recipe, error) {
	start := time.Now()

	unique := make([]int, 0, len(ids))
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	s.logger.Info().
		Int("recipes", len(unique)).
		Int("concurrency", s.config.WarmConcurrency).
		Msg("Starting cache warm-up")

	var (
		mu      sync.Mutex
		results = make(map[int]client.Recipe, len(unique))
		failed  int
	)

	var g errgroup.Group
	g.SetLimit(s.config.WarmConcurrency)

	for _, id := range unique {
		g.Go(func() error {
			// Stop starting new fetches once the caller gives up
			if err := ctx.Err(); err != nil {
				return err
			}

			itemCtx, cancel := context.WithTimeout(ctx, s.config.WarmTimeout)
			defer cancel()

			recipe, err := s.ByID(itemCtx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				s.logger.Warn().Err(err).Int("recipe_id", id).Msg("Warm-up fetch failed")
				return fmt.Errorf("recipe %d: %w", id, err)
			}
			results[id] = recipe
			return nil
		})
	}

	err := g.Wait()

	logEvent := s.logger.Info()
	if err != nil {
		logEvent = s.logger.Warn().Err(err)
	}
	logEvent.
		Int("loaded", len(results)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Cache warm-up complete")

	return results, err
}
