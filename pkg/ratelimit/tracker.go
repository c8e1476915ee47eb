package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/recipe-cache/pkg/kvstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrQuotaExhausted is returned when the daily API quota is used up.
var ErrQuotaExhausted = errors.New("api quota exhausted")

// Quota response headers.
const (
	HeaderQuotaRequest = "X-API-Quota-Request"
	HeaderQuotaUsed    = "X-API-Quota-Used"
	HeaderQuotaLeft    = "X-API-Quota-Left"
)

// Prometheus metrics for quota tracking.
var (
	quotaPointsLeft = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recipe_api_quota_points_left",
		Help: "API quota points left in the current day",
	})

	quotaBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recipe_api_quota_blocks_total",
		Help: "Total number of requests blocked because the quota is exhausted",
	})

	quotaThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recipe_api_quota_throttles_total",
		Help: "Total number of requests throttled because the quota is low",
	})
)

// Tracker monitors the API quota and gates requests.
type Tracker struct {
	store         kvstore.Store
	logger        zerolog.Logger
	now           func() time.Time
	throttleDelay time.Duration
}

// NewTracker creates a tracker persisting its state in store.
func NewTracker(store kvstore.Store, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:         store,
		logger:        logger,
		now:           time.Now,
		throttleDelay: time.Second,
	}
}

// SetClock replaces the tracker's clock (for testing).
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// SetThrottleDelay sets how long a throttled request waits (for testing).
func (t *Tracker) SetThrottleDelay(d time.Duration) {
	t.throttleDelay = d
}

// GetState retrieves the current quota state from the store.
// Returns a default healthy state if none is stored, the stored state
// predates the last daily reset, or it is older than MaxStateAge.
func (t *Tracker) GetState(ctx context.Context) (*QuotaState, error) {
	now := t.now()

	raw, ok, err := t.store.Get(ctx, StateKey)
	if err != nil {
		return nil, fmt.Errorf("get quota state: %w", err)
	}
	if !ok {
		t.logger.Debug().Msg("No quota state stored, assuming healthy")
		return DefaultState(now), nil
	}

	var state QuotaState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("parse quota state: %w", err)
	}

	if state.HasReset(now) {
		t.logger.Debug().
			Time("reset_at", state.ResetAt).
			Msg("Quota state predates daily reset, assuming healthy")
		return DefaultState(now), nil
	}

	// ResetAt written by a skewed clock must not block forever
	if state.IsStale(now, MaxStateAge) {
		t.logger.Debug().
			Time("last_update", state.LastUpdate).
			Msg("Quota state too old, assuming healthy")
		return DefaultState(now), nil
	}

	state.UpdateHealth()
	return &state, nil
}

// UpdateFromHeaders parses the quota headers and persists the new state.
// Responses without X-API-Quota-Left are ignored.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, headers http.Header) error {
	leftStr := headers.Get(HeaderQuotaLeft)
	if leftStr == "" {
		return nil
	}

	left, err := strconv.ParseFloat(leftStr, 64)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderQuotaLeft, err)
	}

	used, err := parseOptionalFloat(headers, HeaderQuotaUsed)
	if err != nil {
		return err
	}
	cost, err := parseOptionalFloat(headers, HeaderQuotaRequest)
	if err != nil {
		return err
	}

	now := t.now()
	state := &QuotaState{
		PointsLeft:      left,
		PointsUsed:      used,
		LastRequestCost: cost,
		ResetAt:         NextReset(now),
		LastUpdate:      now,
	}
	state.UpdateHealth()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal quota state: %w", err)
	}
	if err := t.store.Set(ctx, StateKey, string(data)); err != nil {
		return fmt.Errorf("store quota state: %w", err)
	}

	quotaPointsLeft.Set(left)

	switch {
	case state.NeedsCriticalBlock():
		t.logger.Error().
			Float64("points_left", left).
			Time("reset_at", state.ResetAt).
			Msg("API quota exhausted - requests will be blocked")
	case state.NeedsThrottling():
		t.logger.Warn().
			Float64("points_left", left).
			Msg("API quota low - requests will be throttled")
	default:
		t.logger.Debug().
			Float64("points_left", left).
			Float64("points_used", used).
			Float64("request_cost", cost).
			Bool("is_healthy", state.IsHealthy).
			Msg("API quota state updated")
	}

	return nil
}

// ShouldAllowRequest checks whether a request may be sent.
// Returns false if the quota is exhausted. When the quota is low it waits
// for the throttle delay before allowing the request; a context ending
// during that wait returns the context error. An unreadable state is logged
// and the request is allowed.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Quota state unavailable, allowing request")
		return true, nil
	}

	// Critical: block all requests
	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Float64("points_left", state.PointsLeft).
			Dur("wait_duration", state.TimeUntilReset(t.now())).
			Msg("API quota exhausted - blocking request")

		quotaBlocksTotal.Inc()
		return false, nil
	}

	// Warning: throttle
	if state.NeedsThrottling() {
		t.logger.Warn().
			Float64("points_left", state.PointsLeft).
			Msg("API quota low - throttling request")

		quotaThrottlesTotal.Inc()

		timer := time.NewTimer(t.throttleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
		}
	}

	return true, nil
}

func parseOptionalFloat(headers http.Header, name string) (float64, error) {
	v := headers.Get(name)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s header: %w", name, err)
	}
	return f, nil
}
