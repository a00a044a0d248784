package compiler

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of analyses a Pipeline keeps.
const DefaultCacheSize = 64

// Cache keeps recent analyses keyed by the hash of their inputs: the
// snapshot contents and every option that influences discovery. It is safe
// for concurrent use.
type Cache struct {
	lru    *lru.Cache[uint64, *Analysis]
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits   int64
	Misses int64
	Len    int
}

// NewCache returns a cache holding at most size analyses.
func NewCache(size int) (*Cache, error) {
	l, err := lru.New[uint64, *Analysis](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// Get returns the analysis stored under key.
func (c *Cache) Get(key uint64) (*Analysis, bool) {
	a, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return a, ok
}

// Add stores a under key, evicting the least recently used entry when full.
func (c *Cache) Add(key uint64, a *Analysis) {
	c.lru.Add(key, a)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Stats returns the hit and miss counters and the current size.
func (c *Cache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load(), Len: c.lru.Len()}
}
