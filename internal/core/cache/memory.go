package cache

import (
	"sync"
	"time"
)

// MemoryCache is a small TTL cache for computed query results
type MemoryCache struct {
	name    string
	data    map[string]*cacheEntry
	mutex   sync.Mutex
	stats   CacheStats
	ttl     time.Duration
	observe func(hit bool)
	now     func() time.Time
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// CacheStats tracks cache performance
type CacheStats struct {
	Name      string `json:"name"`
	Size      int    `json:"size"`
	HitCount  uint64 `json:"hit_count"`
	MissCount uint64 `json:"miss_count"`
	Sets      uint64 `json:"sets"`
	Clears    uint64 `json:"clears"`
}

// NewMemoryCache creates a cache whose entries live for ttl. observe, when
// non-nil, is told about every lookup.
func NewMemoryCache(name string, ttl time.Duration, observe func(hit bool)) *MemoryCache {
	return &MemoryCache{
		name:    name,
		data:    make(map[string]*cacheEntry),
		ttl:     ttl,
		observe: observe,
		now:     time.Now,
	}
}

// Get retrieves a live value by key
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mutex.Lock()
	entry, exists := c.data[key]
	if exists && !c.now().Before(entry.expiresAt) {
		delete(c.data, key)
		exists = false
	}
	if exists {
		c.stats.HitCount++
	} else {
		c.stats.MissCount++
	}
	c.mutex.Unlock()

	if c.observe != nil {
		c.observe(exists)
	}
	if !exists {
		return nil, false
	}
	return entry.value, true
}

// Set stores a value by key
func (c *MemoryCache) Set(key string, value interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = &cacheEntry{value: value, expiresAt: c.now().Add(c.ttl)}
	c.stats.Sets++
}

// Clear drops every entry
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]*cacheEntry)
	c.stats.Clears++
}

// Stats returns a copy of the counters
func (c *MemoryCache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stats := c.stats
	stats.Name = c.name
	stats.Size = len(c.data)
	return stats
}

// GetStatus reports the counters for the monitoring status endpoint
func (c *MemoryCache) GetStatus() map[string]interface{} {
	stats := c.Stats()
	status := map[string]interface{}{
		"name":       stats.Name,
		"size":       stats.Size,
		"hit_count":  stats.HitCount,
		"miss_count": stats.MissCount,
		"sets":       stats.Sets,
		"clears":     stats.Clears,
	}
	if total := stats.HitCount + stats.MissCount; total > 0 {
		status["hit_rate"] = float64(stats.HitCount) / float64(total) * 100
	}
	return status
}
