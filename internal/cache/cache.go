// Package cache is the bounded, time-expiring result cache consulted by the
// dispatcher. Capacity eviction is LRU; expired entries are treated as
// misses and removed lazily on lookup.
package cache

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"inferd/pkg/types"
)

type ttlEntry struct {
	res       types.InferenceResult
	expiresAt time.Time
}

// Cache is a mutex-guarded LRU of inference results.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

// New creates a cache holding at most capacity entries, each expiring ttl
// after insertion. ttl <= 0 disables expiry.
func New(capacity int, ttl time.Duration) *Cache {
	return &Cache{
		lru: lru.New(capacity),
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the cached result for key. Expired entries are removed and
// reported as misses.
func (c *Cache) Get(key string) (types.InferenceResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key)
	if !ok {
		return types.InferenceResult{}, false
	}
	e := v.(ttlEntry)
	if c.ttl > 0 && c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		return types.InferenceResult{}, false
	}
	return e.res, true
}

// Put inserts a result under key, evicting the least recently used entry
// when at capacity.
func (c *Cache) Put(key string, res types.InferenceResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, ttlEntry{res: res, expiresAt: c.now().Add(c.ttl)})
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
