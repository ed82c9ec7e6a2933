package weather

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"gardenwatch/internal/types"
)

// DefaultCacheTTL keeps a current-conditions reading for six hours, matching
// the four-refreshes-a-day cadence the product promises.
const DefaultCacheTTL = 6 * time.Hour

type cacheEntry struct {
	weather   *types.CurrentWeather
	expiresAt time.Time
}

// Cache is a TTL cache of current-weather readings keyed by bucket. Expired
// entries read as misses and are dropped on the next write to the key.
type Cache struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache creates a cache with the given TTL; zero means DefaultCacheTTL.
// A nil clock defaults to the real clock.
func NewCache(ttl time.Duration, clock clockwork.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the unexpired reading for the bucket, or nil and false.
func (c *Cache) Get(bucket string) (*types.CurrentWeather, bool) {
	c.mu.RLock()
	entry, ok := c.entries[bucket]
	c.mu.RUnlock()

	if !ok || c.clock.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.weather, true
}

// Put stores the reading for the bucket with a fresh TTL.
func (c *Cache) Put(bucket string, w *types.CurrentWeather) {
	c.mu.Lock()
	c.entries[bucket] = cacheEntry{
		weather:   w,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Len returns the number of entries including expired ones not yet replaced.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
