package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/recipe-cache/pkg/kvstore"
)

// FaultyStore wraps a kvstore.Store and injects errors per operation.
type FaultyStore struct {
	kvstore.Store

	mu        sync.Mutex
	getErr    error
	setErr    error
	removeErr error

	gets    int
	sets    int
	removes int
}

// NewFaultyStore wraps inner, or a fresh MemoryStore when inner is nil.
func NewFaultyStore(inner kvstore.Store) *FaultyStore {
	if inner == nil {
		inner = kvstore.NewMemoryStore()
	}
	return &FaultyStore{Store: inner}
}

// FailGet makes Get return err (nil restores normal behaviour).
func (s *FaultyStore) FailGet(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getErr = err
}

// FailSet makes Set return err (nil restores normal behaviour).
func (s *FaultyStore) FailSet(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErr = err
}

// FailRemove makes Remove return err (nil restores normal behaviour).
func (s *FaultyStore) FailRemove(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeErr = err
}

func (s *FaultyStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	s.gets++
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	return s.Store.Get(ctx, key)
}

func (s *FaultyStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.sets++
	err := s.setErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Set(ctx, key, value)
}

func (s *FaultyStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	s.removes++
	err := s.removeErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Remove(ctx, key)
}

// Counts returns the number of Get, Set and Remove calls so far.
func (s *FaultyStore) Counts() (gets, sets, removes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.sets, s.removes
}

// Clock is a manually advanced clock for expiry tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock set to start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
