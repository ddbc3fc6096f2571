// Package cache provides the explicit memoization cache shared by the
// lifting factory (lifted return types) and domain operations (parsed
// tables).
//
// The cache is owned by whoever composes the engine and injected into it;
// there is no package-level instance. Every key is write-once: once a value
// has been computed for a key it never changes, which makes concurrent reads
// safe without further coordination. Failed computations are not cached.
package cache

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Namespaces keep keys from different owners apart.
const (
	NamespaceReturnType = "return-type"
	NamespaceTable      = "table"
)

// Stats reports cache effectiveness.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// Cache is a write-once, concurrency-safe memoization cache.
//
// Thread-safety: all methods are safe for concurrent use. Concurrent
// GetOrCompute calls for the same key run compute exactly once.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]any
	hits    int64
	misses  int64
	group   singleflight.Group
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]any)}
}

// Key builds a deterministic key from a namespace and parts.
func Key(namespace string, parts ...string) string {
	return namespace + "\x00" + strings.Join(parts, "\x00")
}

// Get returns the value stored for key.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// GetOrCompute returns the cached value for key, computing and storing it
// on a miss. compute runs at most once per key at a time; if it fails the
// error is returned and nothing is stored.
func (c *Cache) GetOrCompute(key string, compute func() (any, error)) (any, error) {
	c.mu.Lock()
	if v, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return v, nil
	}
	c.misses++
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check: another flight may have completed between the unlock
		// above and this call.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if existing, ok := c.entries[key]; ok {
			v = existing
		} else {
			c.entries[key] = v
		}
		c.mu.Unlock()
		return v, nil
	})
	return v, err
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// Load is a typed wrapper around GetOrCompute.
func Load[T any](c *Cache, key string, compute func() (T, error)) (T, error) {
	v, err := c.GetOrCompute(key, func() (any, error) {
		return compute()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: key %q holds %T", key, v)
	}
	return typed, nil
}
