package cache

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry is a decoded cache entry.
type Entry[T any] struct {
	// Value is the cached payload.
	Value T

	// WrittenAt is when the entry was stored. Zero for legacy entries that
	// only carried a timestamp of unknown precision.
	WrittenAt time.Time

	// Expiry is the first instant at which the entry is no longer valid.
	Expiry time.Time
}

// IsValid reports whether the entry is still valid at now.
func (e Entry[T]) IsValid(now time.Time) bool {
	return now.UnixMilli() < e.Expiry.UnixMilli()
}

// TTL returns the time left until expiry at now, or 0 if already expired.
func (e Entry[T]) TTL(now time.Time) time.Duration {
	ttl := e.Expiry.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// wireEntry is the persisted JSON shape. The canonical form written by this
// package is {"value", "writtenAt", "expiry"}. The legacy form
// {"data", "timestamp"} is accepted on read only.
type wireEntry struct {
	Value     json.RawMessage `json:"value,omitempty"`
	WrittenAt int64           `json:"writtenAt,omitempty"`
	Expiry    *int64          `json:"expiry,omitempty"`

	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp *int64          `json:"timestamp,omitempty"`
}

// encodeEntry serializes value in canonical expiry form.
func encodeEntry[T any](value T, writtenAt time.Time, ttl time.Duration) (string, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal cache value: %w", err)
	}

	expiry := writtenAt.Add(ttl).UnixMilli()
	data, err := json.Marshal(wireEntry{
		Value:     payload,
		WrittenAt: writtenAt.UnixMilli(),
		Expiry:    &expiry,
	})
	if err != nil {
		return "", fmt.Errorf("marshal cache entry: %w", err)
	}
	return string(data), nil
}

// decodeEntry parses raw in either form. ttl is only used to derive the
// expiry of legacy timestamp-form entries.
func decodeEntry[T any](raw string, ttl time.Duration) (Entry[T], error) {
	var (
		entry Entry[T]
		wire  wireEntry
	)
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return entry, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	var payload json.RawMessage
	switch {
	case wire.Expiry != nil:
		payload = wire.Value
		entry.Expiry = time.UnixMilli(*wire.Expiry)
		if wire.WrittenAt != 0 {
			entry.WrittenAt = time.UnixMilli(wire.WrittenAt)
		}
	case wire.Timestamp != nil:
		payload = wire.Data
		entry.WrittenAt = time.UnixMilli(*wire.Timestamp)
		entry.Expiry = entry.WrittenAt.Add(ttl)
	default:
		return entry, fmt.Errorf("%w: neither expiry nor timestamp present", ErrInvalidEntry)
	}

	// A nil value is written as "value":null, so an absent field is damage
	if len(payload) == 0 {
		return entry, fmt.Errorf("%w: payload field missing", ErrInvalidEntry)
	}
	if err := json.Unmarshal(payload, &entry.Value); err != nil {
		return entry, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	return entry, nil
}
