// Package cache provides a bounded key-value store with true LRU eviction
// and optional per-entry expiry.
//
// Recency bookkeeping is delegated to hashicorp/golang-lru; this package
// layers lazy time-based expiry on top. There is no background sweeper:
// expired entries are detected and purged when they are read (Get, Has,
// Keys, Len). Both Get and Set count as a "use" for eviction ordering.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 128

// entry wraps a cached value with its expiry bookkeeping.
// A zero ExpiresAt means the entry never expires.
type entry[V any] struct {
	Value      V
	InsertedAt time.Time
	ExpiresAt  time.Time
}

// expired reports whether the entry's expiry has passed at time now.
func (e entry[V]) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Cache is a bounded LRU store with optional per-entry TTL.
// All operations are total: a missing key is a valid outcome, never an error.
// Safe for concurrent use.
type Cache[V any] struct {
	inner    *lru.Cache[string, entry[V]]
	capacity int
}

// New creates a cache holding at most capacity entries.
// Non-positive capacities fall back to DefaultCapacity.
func New[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// lru.New only errors on non-positive size, which is guarded above.
	inner, _ := lru.New[string, entry[V]](capacity)
	return &Cache[V]{inner: inner, capacity: capacity}
}

// Get returns the value for key and marks it most-recently-used.
// An entry whose TTL has passed is evicted and reported as missing.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	e, ok := c.inner.Get(key)
	if !ok {
		return zero, false
	}
	if e.expired(time.Now()) {
		c.inner.Remove(key)
		return zero, false
	}
	return e.Value, true
}

// Set inserts or overwrites key with a value that never expires.
// Inserting a new key at capacity evicts the least-recently-used entry.
func (c *Cache[V]) Set(key string, value V) {
	c.inner.Add(key, entry[V]{Value: value, InsertedAt: time.Now()})
}

// SetTTL inserts or overwrites key with a value that expires after ttl.
// A non-positive ttl stores the value without expiry.
func (c *Cache[V]) SetTTL(key string, value V, ttl time.Duration) {
	now := time.Now()
	e := entry[V]{Value: value, InsertedAt: now}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	c.inner.Add(key, e)
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	return c.inner.Remove(key)
}

// Has reports whether key holds a live (unexpired) entry.
// Unlike Get it does not refresh the key's recency. An expired entry
// found here is purged.
func (c *Cache[V]) Has(key string) bool {
	e, ok := c.inner.Peek(key)
	if !ok {
		return false
	}
	if e.expired(time.Now()) {
		c.inner.Remove(key)
		return false
	}
	return true
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.inner.Purge()
}

// Keys returns the live keys ordered least- to most-recently-used.
// Expired entries encountered are purged as a side effect.
func (c *Cache[V]) Keys() []string {
	now := time.Now()
	all := c.inner.Keys()
	keys := make([]string, 0, len(all))
	for _, k := range all {
		e, ok := c.inner.Peek(k)
		if !ok {
			continue
		}
		if e.expired(now) {
			c.inner.Remove(k)
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of live entries, purging any expired ones.
func (c *Cache[V]) Len() int {
	return len(c.Keys())
}

// Cap returns the configured capacity.
func (c *Cache[V]) Cap() int {
	return c.capacity
}
