// Package cache provides the expiring key-value stores used for license verdicts.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is the default time-to-live for cached entries
var DefaultTTL = 10 * time.Minute

// Store is an expiring key-value store.
// Implementations must be safe for concurrent use; concurrent writes to one key are last write wins.
type Store[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T, ttl time.Duration)
}

// Entry represents a cached item
type Entry[T any] struct {
	Value     T
	ExpiresAt time.Time
}

func (e Entry[T]) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Memory is a process-lifetime in-memory Store. Nothing is persisted.
type Memory[T any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[T]
	now     func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{
		entries: make(map[string]Entry[T]),
		now:     time.Now,
	}
}

// WithClock replaces the clock used for expiry checks
func (c *Memory[T]) WithClock(now func() time.Time) *Memory[T] {
	c.now = now
	return c
}

// Get returns the value for key if a non-expired entry exists
func (c *Memory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.expired(c.now()) {
		var zero T
		return zero, false
	}
	return entry.Value, true
}

// Set stores value under key until now + ttl. Expired entries are purged on write.
func (c *Memory[T]) Set(key string, value T, ttl time.Duration) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = Entry[T]{
		Value:     value,
		ExpiresAt: now.Add(ttl),
	}
}

// Len reports the number of stored entries, expired or not
func (c *Memory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Nop never stores anything
type Nop[T any] struct{}

func (Nop[T]) Get(string) (T, bool) {
	var zero T
	return zero, false
}

func (Nop[T]) Set(string, T, time.Duration) {}

// GetOrSet retrieves a value from the store or computes it with fn.
// Values are stored only when fn succeeds.
func GetOrSet[T any](s Store[T], key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	if v, ok := s.Get(key); ok {
		return v, nil
	}

	value, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}

	s.Set(key, value, ttl)
	return value, nil
}

var (
	_ Store[string] = (*Memory[string])(nil)
	_ Store[string] = Nop[string]{}
)
