package packages

import (
	"context"
	"unicode/utf8"

	"github.com/matzehuels/pkghealth/pkg/cache"
)

// Registry is the upstream source of package metadata and search results.
type Registry interface {
	FetchPackage(ctx context.Context, name, version string) (*Metadata, error)
	SearchPackages(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Repository is a cache-aside wrapper over a Registry.
type Repository struct {
	registry Registry
	cache    cache.Cache
}

// NewRepository creates a repository. A nil cache disables caching.
func NewRepository(registry Registry, c cache.Cache) *Repository {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Repository{registry: registry, cache: c}
}

// FindByName returns metadata for name at version (a dist-tag or concrete
// version; empty means "latest"). Registry errors, including not-found,
// are returned unchanged and never cached.
func (r *Repository) FindByName(ctx context.Context, name, version string) (*Metadata, error) {
	if version == "" {
		version = DefaultVersion
	}
	m, err := cache.ReadThrough(ctx, r.cache, cache.PackageKey(name, version), cache.PackageTTL,
		func(ctx context.Context) (*Metadata, error) {
			return r.registry.FetchPackage(ctx, name, version)
		})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Search returns registry hits for query. Queries shorter than
// MinQueryLength return an empty slice without touching the cache or the
// registry.
//
// The cache key is the query alone: a cached result set fetched with a
// larger limit is returned as-is to a caller asking for fewer.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if utf8.RuneCountInString(query) < MinQueryLength {
		return []SearchResult{}, nil
	}
	results, err := cache.ReadThrough(ctx, r.cache, cache.SearchKey(query), cache.SearchTTL,
		func(ctx context.Context) ([]SearchResult, error) {
			return r.registry.SearchPackages(ctx, query, limit)
		})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}
