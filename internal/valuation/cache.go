package valuation

import (
	"sync"
	"time"
)

// DefaultCacheTTL is how long an estimate is reused without recomputation.
const DefaultCacheTTL = 24 * time.Hour

type cacheEntry struct {
	estimate Estimate
	storedAt time.Time
}

// Cache holds recent estimates keyed by player ID. It lives for the process and
// is shared by every session.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[int64]cacheEntry
	now     func() time.Time
}

// NewCache creates a cache whose entries expire after ttl.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[int64]cacheEntry),
		now:     time.Now,
	}
}

// WithClock replaces the time source and returns the cache.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get returns a live estimate for playerID.
func (c *Cache) Get(playerID int64) (Estimate, bool) {
	c.mu.RLock()
	entry, ok := c.entries[playerID]
	c.mu.RUnlock()
	if !ok || c.now().Sub(entry.storedAt) >= c.ttl {
		return Estimate{}, false
	}
	return entry.estimate, true
}

// Set stores est for playerID.
func (c *Cache) Set(playerID int64, est Estimate) {
	c.mu.Lock()
	c.entries[playerID] = cacheEntry{estimate: est, storedAt: c.now()}
	c.mu.Unlock()
}

// Purge drops expired entries and returns how many remain.
func (c *Cache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for id, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, id)
		}
	}
	return len(c.entries)
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
