// Package kvstore defines the durable string key-value store the recipe cache
// persists into, together with Redis, SQLite and in-memory adapters.
//
// A Store has no notion of expiry. Values are opaque strings; expiry is
// encoded into the value by the cache layer and evaluated lazily on read.
package kvstore

import (
	"context"
	"errors"
)

// ErrClosed is returned by adapters after Close has been called.
var ErrClosed = errors.New("kvstore: store closed")

// Store is an asynchronous, string-keyed, string-valued persistent store.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key. The boolean is false when the
	// key does not exist; that is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Pinger is implemented by stores that can report their availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks s if it implements Pinger and reports nil otherwise.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
