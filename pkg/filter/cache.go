package filter

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the capacity used by NewProgramCache for sizes <= 0.
const DefaultCacheSize = 256

// ProgramCache stores compiled expression programs keyed by expression
// strings. Implementations must be safe for concurrent use.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

type lruCache struct {
	cache *lru.Cache[string, any]
}

// NewProgramCache returns an LRU ProgramCache holding up to size programs.
func NewProgramCache(size int) ProgramCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, any](size)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &lruCache{cache: cache}
}

func (c *lruCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

func (c *lruCache) Set(key string, value any) {
	c.cache.Add(key, value)
}
