// Package ratelimit tracks the recipe API's daily point quota and gates
// requests. It reads the X-API-Quota-Request, X-API-Quota-Used and
// X-API-Quota-Left response headers and stops issuing requests before the
// quota runs out.
package ratelimit

import (
	"time"
)

// StateKey is the store key the quota state is persisted under.
const StateKey = "api_quota_state"

// MaxStateAge is the age after which a stored state is ignored, whatever
// its ResetAt says. The quota is daily, so no observation outlives a day.
const MaxStateAge = 24 * time.Hour

// Thresholds for quota decisions, in API points.
const (
	// QuotaThresholdCritical blocks all requests when fewer points remain.
	QuotaThresholdCritical = 1

	// QuotaThresholdWarning throttles requests when fewer points remain.
	QuotaThresholdWarning = 10

	// QuotaThresholdHealthy indicates normal operation.
	QuotaThresholdHealthy = 50
)

// QuotaState is the last observed quota of the recipe API.
// It is shared by every process using the same store.
type QuotaState struct {
	// PointsLeft is taken from the X-API-Quota-Left header.
	PointsLeft float64 `json:"points_left"`

	// PointsUsed is taken from the X-API-Quota-Used header.
	PointsUsed float64 `json:"points_used"`

	// LastRequestCost is taken from the X-API-Quota-Request header.
	LastRequestCost float64 `json:"last_request_cost"`

	// ResetAt is the next UTC midnight after LastUpdate, when the daily
	// quota is replenished.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the headers were observed.
	LastUpdate time.Time `json:"last_update"`

	// IsHealthy is true when PointsLeft >= QuotaThresholdHealthy.
	IsHealthy bool `json:"is_healthy"`
}

// DefaultState returns the state assumed when nothing is known: a full,
// healthy quota.
func DefaultState(now time.Time) *QuotaState {
	return &QuotaState{
		PointsLeft: QuotaThresholdHealthy,
		ResetAt:    NextReset(now),
		LastUpdate: now,
		IsHealthy:  true,
	}
}

// NextReset returns the first UTC midnight strictly after t.
func NextReset(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// IsStale returns true if the state is older than maxAge at now.
func (s *QuotaState) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.LastUpdate) > maxAge
}

// HasReset reports whether the daily quota has been replenished since the
// state was recorded.
func (s *QuotaState) HasReset(now time.Time) bool {
	return !now.Before(s.ResetAt)
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *QuotaState) NeedsCriticalBlock() bool {
	return s.PointsLeft < QuotaThresholdCritical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *QuotaState) NeedsThrottling() bool {
	return s.PointsLeft < QuotaThresholdWarning && !s.NeedsCriticalBlock()
}

// TimeUntilReset returns the duration until the quota resets at now,
// or 0 if the reset time has already passed.
func (s *QuotaState) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth updates IsHealthy from PointsLeft.
func (s *QuotaState) UpdateHealth() {
	s.IsHealthy = s.PointsLeft >= QuotaThresholdHealthy
}
