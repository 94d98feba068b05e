package cache

import (
	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache implements in-memory score memoization. Entries never expire;
// a cache lives exactly as long as the matrix build that created it.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get retrieves a score from the cache
func (c *MemoryCache) Get(key string) (float64, bool) {
	if val, found := c.cache.Get(key); found {
		return val.(float64), true
	}
	return 0, false
}

// Set stores a score in the cache
func (c *MemoryCache) Set(key string, score float64) {
	c.cache.Set(key, score, gocache.NoExpiration)
}

// Len returns the number of memoized scores
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}

// Clear removes all values from the cache
func (c *MemoryCache) Clear() {
	c.cache.Flush()
}
