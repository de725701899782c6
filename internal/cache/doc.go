/*
Package cache holds the bucket region cache.

# Region Cache

RegionCache maps bucket names to the region they live in. It is bounded
(DefaultRegionCacheCapacity entries) and evicts the least recently used
bucket when full:

	  Lookup(bucket)
	        │
	  ┌─────▼──────┐   hit    ┌───────────────────────────┐
	  │    LRU     │ ───────▶ │ region-scoped signing     │
	  │ bucket→rgn │          └───────────────────────────┘
	  └─────┬──────┘
	        │ miss
	  ┌─────▼──────┐  Store   ┌───────────────────────────┐
	  │   prober   │ ───────▶ │ next request hits         │
	  └────────────┘          └───────────────────────────┘

A RegionCache is safe for concurrent use and is normally shared by every
client in the process, so one discovery serves all of them:

	regions := cache.NewDefaultRegionCache()
	a, _ := s3.NewClient(cfgA, s3.WithRegionCache(regions))
	b, _ := s3.NewClient(cfgB, s3.WithRegionCache(regions))

Deleting a bucket evicts it, since a new bucket with the same name may be
created in another region.
*/
package cache
