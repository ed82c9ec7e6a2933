package alerts

import (
	"sync"

	"gardenwatch/internal/types"
)

// Cache maps bucket keys to the most recent alert bundle computed for that
// bucket. Entries have no TTL: the daily per-bucket job bounds staleness by
// overwriting, and bundles are immutable snapshots, so last-write-wins
// replacement is always safe.
//
// The cache is an owned, injectable value rather than package state so tests
// get isolated instances.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*types.AlertBundle
}

// NewCache creates an empty alert cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*types.AlertBundle)}
}

// Get returns the cached bundle for the bucket, or nil and false.
func (c *Cache) Get(bucket string) (*types.AlertBundle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.entries[bucket]
	return b, ok
}

// Put stores the bundle for the bucket, overwriting unconditionally.
func (c *Cache) Put(bucket string, bundle *types.AlertBundle) {
	c.mu.Lock()
	c.entries[bucket] = bundle
	c.mu.Unlock()
}

// Len returns the number of cached buckets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry. Intended for tests.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*types.AlertBundle)
	c.mu.Unlock()
}
