package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hnlq715/golang-lru"
)

// DefaultRegionCacheCapacity is the number of bucket regions kept in memory.
const DefaultRegionCacheCapacity = 300

// RegionStats holds counters for a RegionCache.
type RegionStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
}

// HitRate returns hits over lookups, zero when nothing was looked up.
func (s RegionStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// RegionCache maps bucket names to the region they were discovered in.
// Entries are dropped least-recently-accessed first once capacity is reached;
// both Lookup and Store count as an access. Safe for concurrent use.
type RegionCache struct {
	lru      *lru.Cache
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	onEvict func(bucket, region string)
}

// RegionCacheOption configures a RegionCache.
type RegionCacheOption func(*RegionCache)

// WithEvictHook registers a callback invoked whenever an entry leaves the cache.
func WithEvictHook(fn func(bucket, region string)) RegionCacheOption {
	return func(c *RegionCache) {
		c.onEvict = fn
	}
}

// NewRegionCache creates a region cache holding at most capacity buckets.
func NewRegionCache(capacity int, opts ...RegionCacheOption) (*RegionCache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("region cache capacity must be positive, got %d", capacity)
	}

	c := &RegionCache{capacity: capacity}
	for _, opt := range opts {
		opt(c)
	}

	l, err := lru.NewWithEvict(capacity, c.evicted)
	if err != nil {
		return nil, fmt.Errorf("create region cache: %w", err)
	}
	c.lru = l
	return c, nil
}

// NewDefaultRegionCache returns a cache with DefaultRegionCacheCapacity.
func NewDefaultRegionCache() *RegionCache {
	c, err := NewRegionCache(DefaultRegionCacheCapacity)
	if err != nil {
		// capacity is a positive constant
		panic(err)
	}
	return c
}

func (c *RegionCache) evicted(key, value interface{}) {
	if c.onEvict == nil {
		return
	}
	bucket, _ := key.(string)
	region, _ := value.(string)
	c.onEvict(bucket, region)
}

// Lookup returns the cached region for bucket and marks it recently used.
func (c *RegionCache) Lookup(bucket string) (string, bool) {
	v, ok := c.lru.Get(bucket)
	if !ok {
		c.misses.Add(1)
		return "", false
	}
	region, ok := v.(string)
	if !ok || region == "" {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return region, true
}

// Store records region for bucket. Empty bucket names or regions are ignored.
// Only entries pushed out by capacity count as evictions in Stats.
func (c *RegionCache) Store(bucket, region string) {
	if bucket == "" || region == "" {
		return
	}
	if c.lru.Add(bucket, region) {
		c.evictions.Add(1)
	}
}

// Evict drops bucket from the cache. Called when a bucket is deleted so a
// later bucket with the same name in another region is not misrouted.
func (c *RegionCache) Evict(bucket string) {
	c.lru.Remove(bucket)
}

// Len returns the number of cached buckets.
func (c *RegionCache) Len() int {
	return c.lru.Len()
}

// Capacity returns the maximum number of cached buckets.
func (c *RegionCache) Capacity() int {
	return c.capacity
}

// Purge removes every entry.
func (c *RegionCache) Purge() {
	c.lru.Purge()
}

// Stats returns a snapshot of the cache counters.
func (c *RegionCache) Stats() RegionStats {
	return RegionStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.lru.Len(),
		Capacity:  c.capacity,
	}
}
