// Package cache provides the key/value store with per-entry TTL that sits in
// front of every upstream lookup.
//
// All backends implement [Cache]. Values are opaque bytes; the typed helpers
// [Load], [Store] and [ReadThrough] handle JSON encoding. A read at or after
// an entry's TTL is indistinguishable from a miss.
//
// # Backends
//
//   - [MemoryCache]: in-process map, the default for the API server
//   - [RedisCache]: networked, shared across server replicas
//   - [MongoCache]: document store with a TTL index
//   - [FileCache]: on-disk, used by the CLI between invocations
//   - [NullCache]: caching disabled
//
// Networked backends never surface transport failures from Get, Set or
// Delete. They log, report through observability hooks, and behave as a miss
// or a no-op.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. A missing or expired entry returns
	// (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// TTLs per key namespace. Trees expire first because they aggregate many
// package and health lookups.
const (
	PackageTTL = time.Hour
	HealthTTL  = 6 * time.Hour
	TreeTTL    = 30 * time.Minute
	SearchTTL  = 5 * time.Minute
	NpmsTTL    = 6 * time.Hour
)
