package app

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkghealth/pkg/cache"
	"github.com/matzehuels/pkghealth/pkg/config"
	"github.com/matzehuels/pkghealth/pkg/errors"
)

// NewCache opens the backend cfg selects, scoped by cfg.Cache.Prefix.
func NewCache(ctx context.Context, cfg *config.Config, logger *log.Logger) (cache.Cache, error) {
	c, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Prefix != "" {
		c = cache.NewScoped(c, cfg.Cache.Prefix)
	}
	return c, nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (cache.Cache, error) {
	switch backend := cfg.CacheBackend(); backend {
	case config.BackendMemory:
		return cache.NewMemoryCache(), nil
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendRedis:
		c, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, logger)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open redis cache")
		}
		return c, nil
	case config.BackendMongo:
		c, err := cache.NewMongoCache(ctx, cfg.Cache.MongoURI, cfg.Cache.MongoDatabase, cfg.Cache.MongoCollection, logger)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open mongo cache")
		}
		return c, nil
	case config.BackendFile:
		dir := cfg.Cache.Dir
		if dir == "" {
			var err error
			if dir, err = cache.DefaultDir(); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInternal, err, "locate cache directory")
			}
		}
		c, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "open file cache")
		}
		return c, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q", backend)
	}
}
