package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegionCache(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantErr  bool
	}{
		{name: "default capacity", capacity: DefaultRegionCacheCapacity},
		{name: "small capacity", capacity: 1},
		{name: "zero capacity", capacity: 0, wantErr: true},
		{name: "negative capacity", capacity: -5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewRegionCache(tt.capacity)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.capacity, c.Capacity())
			assert.Equal(t, 0, c.Len())
		})
	}

	assert.Equal(t, 300, NewDefaultRegionCache().Capacity())
}

func TestRegionCache_RoundTrip(t *testing.T) {
	c := NewDefaultRegionCache()

	c.Store("photos", "eu-west-1")
	region, ok := c.Lookup("photos")
	require.True(t, ok)
	assert.Equal(t, "eu-west-1", region)

	// overwrite keeps a single entry
	c.Store("photos", "us-west-2")
	region, ok = c.Lookup("photos")
	require.True(t, ok)
	assert.Equal(t, "us-west-2", region)
	assert.Equal(t, 1, c.Len())

	_, ok = c.Lookup("missing")
	assert.False(t, ok)

	c.Store("", "us-east-1")
	c.Store("empty-region", "")
	assert.Equal(t, 1, c.Len())
}

func TestRegionCache_EvictsAfterCapacity(t *testing.T) {
	c := NewDefaultRegionCache()

	for i := 0; i < DefaultRegionCacheCapacity; i++ {
		c.Store(fmt.Sprintf("bucket-%03d", i), "us-east-1")
	}
	assert.Equal(t, DefaultRegionCacheCapacity, c.Len())

	for i := 0; i < DefaultRegionCacheCapacity; i++ {
		region, ok := c.Lookup(fmt.Sprintf("bucket-%03d", i))
		require.True(t, ok, "bucket-%03d should still be cached", i)
		assert.Equal(t, "us-east-1", region)
	}

	c.Store("bucket-overflow", "ap-south-1")
	assert.Equal(t, DefaultRegionCacheCapacity, c.Len())

	_, ok := c.Lookup("bucket-000")
	assert.False(t, ok, "least recently accessed bucket should be evicted")

	region, ok := c.Lookup("bucket-overflow")
	require.True(t, ok)
	assert.Equal(t, "ap-south-1", region)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestRegionCache_AccessOrder(t *testing.T) {
	c, err := NewRegionCache(3)
	require.NoError(t, err)

	c.Store("a", "r-a")
	c.Store("b", "r-b")
	c.Store("c", "r-c")

	// reading "a" makes "b" the oldest
	_, ok := c.Lookup("a")
	require.True(t, ok)

	c.Store("d", "r-d")

	_, ok = c.Lookup("b")
	assert.False(t, ok, "b was least recently accessed")
	for _, bucket := range []string{"a", "c", "d"} {
		_, ok := c.Lookup(bucket)
		assert.True(t, ok, "%s should be retained", bucket)
	}

	// writing "c" again refreshes it as well
	c.Store("c", "r-c2")
	c.Store("e", "r-e")
	_, ok = c.Lookup("a")
	assert.False(t, ok)
	region, ok := c.Lookup("c")
	require.True(t, ok)
	assert.Equal(t, "r-c2", region)
}

func TestRegionCache_Evict(t *testing.T) {
	var (
		mu      sync.Mutex
		evicted []string
	)
	c, err := NewRegionCache(10, WithEvictHook(func(bucket, region string) {
		mu.Lock()
		defer mu.Unlock()
		evicted = append(evicted, bucket+"="+region)
	}))
	require.NoError(t, err)

	c.Store("deleted", "eu-central-1")
	c.Evict("deleted")

	_, ok := c.Lookup("deleted")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	mu.Lock()
	assert.Equal(t, []string{"deleted=eu-central-1"}, evicted)
	mu.Unlock()

	// evicting an unknown bucket is a no-op
	c.Evict("never-stored")
	assert.Equal(t, 0, c.Len())
}

func TestRegionCache_EvictionsCountCapacityOnly(t *testing.T) {
	var hooked int
	c, err := NewRegionCache(2, WithEvictHook(func(string, string) { hooked++ }))
	require.NoError(t, err)

	c.Store("a", "r-a")
	c.Store("b", "r-b")
	c.Store("b", "r-b2")
	assert.Zero(t, c.Stats().Evictions, "overwriting an entry is not an eviction")

	c.Evict("a")
	c.Store("c", "r-c")
	c.Purge()
	assert.Zero(t, c.Stats().Evictions, "explicit removal is not an eviction")
	assert.Equal(t, 3, hooked, "the hook still sees every removal")

	c.Store("x", "r")
	c.Store("y", "r")
	c.Store("z", "r")
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestRegionCache_Stats(t *testing.T) {
	c := NewDefaultRegionCache()
	c.Store("b", "us-east-2")

	c.Lookup("b")
	c.Lookup("b")
	c.Lookup("nope")

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, DefaultRegionCacheCapacity, stats.Capacity)
	assert.InDelta(t, 2.0/3.0, stats.HitRate(), 0.0001)

	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0.0, RegionStats{}.HitRate())
}

func TestRegionCache_Concurrent(t *testing.T) {
	c, err := NewRegionCache(50)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				bucket := fmt.Sprintf("bucket-%d", (g*31+i)%120)
				if i%3 == 0 {
					c.Evict(bucket)
					continue
				}
				c.Store(bucket, "us-east-1")
				c.Lookup(bucket)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}
