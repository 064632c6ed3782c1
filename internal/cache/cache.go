// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache provides a process-wide, content-addressed TTL cache for
// completed analyses. Entries are immutable once written; Set replaces an
// entry wholesale and Get evicts expired entries lazily.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pdiddy/trust-engine/pkg/types"
)

// DefaultTTL is how long an entry stays valid when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// Entry is one cached value with its write and expiry times.
type Entry[T any] struct {
	Data      T
	Timestamp time.Time
	ExpiresAt time.Time
}

// Cache is a mutex-guarded map safe for concurrent Get and Set.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]Entry[T]
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithClock replaces time.Now, for tests.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *Cache[T]) { c.now = now }
}

// New returns an empty cache. A non-positive ttl uses DefaultTTL.
func New[T any](ttl time.Duration, opts ...Option[T]) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache[T]{
		entries: make(map[string]Entry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key derives the cache key for a raw request: the hex SHA-256 of
// inputType + ":" + content. Metadata never enters the key.
func Key(inputType types.InputType, content string) string {
	sum := sha256.Sum256([]byte(string(inputType) + ":" + content))
	return hex.EncodeToString(sum[:])
}

// Get returns the value for key if it has not expired. An expired entry is
// removed and reported as a miss.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, false
	}
	if c.now().After(e.ExpiresAt) {
		delete(c.entries, key)
		var zero T
		return zero, false
	}
	return e.Data, true
}

// Set stores value under key with a fresh expiry, replacing any prior entry.
func (c *Cache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = Entry[T]{
		Data:      value,
		Timestamp: now,
		ExpiresAt: now.Add(c.ttl),
	}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes every expired entry and returns how many were removed.
func (c *Cache[T]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.ExpiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Run sweeps expired entries every interval until ctx is done. onSweep,
// when non-nil, receives the count removed by each pass.
func (c *Cache[T]) Run(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := c.Sweep()
			if onSweep != nil {
				onSweep(n)
			}
		}
	}
}
