package cache

import (
	"context"
	"time"
)

// ScopedCache prefixes every key so several deployments can share one Redis
// or Mongo instance without colliding.
//
//	shared := cache.NewScoped(redisCache, "staging:")
//	shared.Get(ctx, "pkg:react:latest") // reads "staging:pkg:react:latest"
type ScopedCache struct {
	inner  Cache
	prefix string
}

// NewScoped wraps inner. An empty prefix returns inner unchanged.
func NewScoped(inner Cache, prefix string) Cache {
	if prefix == "" {
		return inner
	}
	return &ScopedCache{inner: inner, prefix: prefix}
}

func (c *ScopedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.inner.Get(ctx, c.prefix+key)
}

func (c *ScopedCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.inner.Set(ctx, c.prefix+key, data, ttl)
}

func (c *ScopedCache) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, c.prefix+key)
}

func (c *ScopedCache) Close() error {
	return c.inner.Close()
}

var _ Cache = (*ScopedCache)(nil)
