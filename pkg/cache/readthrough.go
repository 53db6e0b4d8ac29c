package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/pkghealth/pkg/observability"
)

// Load reads key and decodes it as JSON into a T. Backend errors and entries
// that fail to decode count as misses.
func Load[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var zero T
	keyType := KeyType(key)

	data, ok, err := c.Get(ctx, key)
	if err != nil {
		observability.Cache().OnCacheError(ctx, keyType, "get", err)
		ok = false
	}
	if !ok {
		observability.Cache().OnCacheMiss(ctx, keyType)
		return zero, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		observability.Cache().OnCacheError(ctx, keyType, "decode", err)
		observability.Cache().OnCacheMiss(ctx, keyType)
		return zero, false
	}
	observability.Cache().OnCacheHit(ctx, keyType)
	return v, true
}

// Store encodes v as JSON and writes it under key.
func Store[T any](ctx context.Context, c Cache, key string, v T, ttl time.Duration) error {
	keyType := KeyType(key)
	data, err := json.Marshal(v)
	if err != nil {
		observability.Cache().OnCacheError(ctx, keyType, "encode", err)
		return err
	}
	if err := c.Set(ctx, key, data, ttl); err != nil {
		observability.Cache().OnCacheError(ctx, keyType, "set", err)
		return err
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(data))
	return nil
}

// ReadThrough returns the cached value for key, or calls fetch and caches its
// result for ttl.
//
// A fetch error is returned as-is and nothing is written. A failed write is
// reported through the cache hooks and otherwise ignored. Values produced
// after ctx is done are returned but not cached, since a cancelled fetch may
// have been cut short.
func ReadThrough[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := Load[T](ctx, c, key); ok {
		return v, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	if ctx.Err() == nil {
		_ = Store(ctx, c, key, v, ttl)
	}
	return v, nil
}
