package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/pkghealth/pkg/observability"
)

// RedisCache stores entries in Redis with native key expiry.
//
// Transport failures never reach callers: Get degrades to a miss and
// Set/Delete to a no-op, after logging at warn level.
type RedisCache struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedisCache connects to the Redis instance at url
// (redis://[user:pass@]host:port/db). The connection is established lazily;
// an unreachable server is logged, not returned.
func NewRedisCache(ctx context.Context, url string, logger *log.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := NewRedisCacheFromClient(redis.NewClient(opts), logger)
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.logger.Warn("redis unreachable, cache will degrade to misses", "addr", opts.Addr, "error", err)
	}
	return c, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, logger *log.Logger) *RedisCache {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisCache{client: client, logger: logger}
}

// Get retrieves a value from Redis.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		c.degrade(ctx, "get", key, err)
		return nil, false, nil
	}
	return data, true, nil
}

// Set stores a value with SET EX semantics.
func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.degrade(ctx, "set", key, err)
	}
	return nil
}

// Delete removes a key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.degrade(ctx, "delete", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) degrade(ctx context.Context, op, key string, err error) {
	c.logger.Warn("redis "+op+" failed", "key", key, "error", err)
	observability.Cache().OnCacheError(ctx, KeyType(key), op, err)
}

var _ Cache = (*RedisCache)(nil)
