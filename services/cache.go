package services

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// ReadThroughCache keeps query results for a fixed TTL. A TTL of zero or less
// turns it off and every read goes to the loader.
type ReadThroughCache struct {
	store *cache.Cache
	ttl   time.Duration
}

func NewReadThroughCache(ttl time.Duration) *ReadThroughCache {
	if ttl <= 0 {
		return &ReadThroughCache{}
	}
	return &ReadThroughCache{store: cache.New(ttl, 2*ttl), ttl: ttl}
}

func (c *ReadThroughCache) Invalidate(key string) {
	if c == nil || c.store == nil {
		return
	}
	c.store.Delete(key)
}

func (c *ReadThroughCache) Flush() {
	if c == nil || c.store == nil {
		return
	}
	c.store.Flush()
}

func (c *ReadThroughCache) Len() int {
	if c == nil || c.store == nil {
		return 0
	}
	return c.store.ItemCount()
}

// cached returns the value under key, calling load and storing its result on a
// miss. Errors are never cached.
func cached[T any](c *ReadThroughCache, key string, load func() (T, error)) (T, error) {
	if c == nil || c.store == nil {
		return load()
	}
	if v, ok := c.store.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.store.Set(key, v, c.ttl)
	return v, nil
}
