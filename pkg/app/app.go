// Package app wires pkghealth's services together.
//
// [New] builds the whole object graph once from a [config.Config]: cache
// backend, upstream clients, package repository, health service and
// dependency resolver. Both the HTTP server and the CLI go through an
// [App]; tests build their own instance rather than sharing one.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkghealth/pkg/cache"
	"github.com/matzehuels/pkghealth/pkg/config"
	"github.com/matzehuels/pkghealth/pkg/deps"
	"github.com/matzehuels/pkghealth/pkg/errors"
	"github.com/matzehuels/pkghealth/pkg/health"
	"github.com/matzehuels/pkghealth/pkg/httputil"
	"github.com/matzehuels/pkghealth/pkg/integrations"
	"github.com/matzehuels/pkghealth/pkg/integrations/npm"
	"github.com/matzehuels/pkghealth/pkg/integrations/npms"
	"github.com/matzehuels/pkghealth/pkg/packages"
)

// Search limits.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 25
)

const (
	dnsRefresh       = 5 * time.Minute
	breakerThreshold = 5
	retryDelay       = 250 * time.Millisecond
)

// App holds the constructed services.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Cache    cache.Cache
	Packages *packages.Repository
	Health   *health.Service
	Resolver *deps.Resolver

	breakers *httputil.Breakers
	cancel   context.CancelFunc
}

// New builds an App from cfg. The returned App owns background resources
// (DNS refresh, cache connections) until Close is called.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.Default()
	}

	c, err := NewCache(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	bg, cancel := context.WithCancel(context.Background())
	transport := httputil.NewTransport(bg, dnsRefresh)
	breakers := httputil.NewBreakers(breakerThreshold)

	registry := npm.NewClient(cfg.Registry.URL, upstreamOptions(cfg.Registry, transport, breakers)...)
	analysis := npms.NewClient(cfg.Analysis.URL, c, logger, upstreamOptions(cfg.Analysis, transport, breakers)...)

	a := Assemble(c, registry, analysis, logger)
	a.Config = cfg
	a.breakers = breakers
	a.cancel = cancel

	logger.Debug("application ready",
		"cache", cfg.CacheBackend(),
		"registry", cfg.Registry.URL,
		"analysis", cfg.Analysis.URL)
	return a, nil
}

// Assemble builds an App from already constructed collaborators.
func Assemble(c cache.Cache, registry packages.Registry, analyzer health.Analyzer, logger *log.Logger) *App {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	repo := packages.NewRepository(registry, c)
	hs := health.NewService(repo, analyzer, c, logger)
	return &App{
		Config:   config.Default(),
		Logger:   logger,
		Cache:    c,
		Packages: repo,
		Health:   hs,
		Resolver: deps.NewResolver(repo, hs, c, logger),
	}
}

func upstreamOptions(u config.UpstreamConfig, transport http.RoundTripper, breakers *httputil.Breakers) []integrations.Option {
	hc := integrations.NewHTTPClient(transport)
	if u.Timeout > 0 {
		hc.Timeout = u.Timeout
	}
	return []integrations.Option{
		integrations.WithHTTPClient(hc),
		integrations.WithRateLimit(u.RateLimit, int(u.RateLimit)+1),
		integrations.WithBreakers(breakers),
		integrations.WithRetries(u.Retries, retryDelay),
	}
}

// Close releases the cache and stops background work.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	return a.Cache.Close()
}

// ResolveDependencyTree validates name and resolves its tree. When the
// root package itself cannot be fetched the sentinel tree is turned back
// into a typed error.
func (a *App) ResolveDependencyTree(ctx context.Context, name, version string, maxDepth int) (*deps.Tree, error) {
	if err := errors.ValidateNpmPackageName(name); err != nil {
		return nil, err
	}
	if version == "" {
		version = packages.DefaultVersion
	}

	tree, err := a.Resolver.Resolve(ctx, name, version, maxDepth)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "resolve %s@%s", name, version)
	}
	if root := tree.Root; root.HasError {
		return nil, rootError(name, version, root)
	}
	return tree, nil
}

func rootError(name, version string, root *deps.Node) error {
	switch errors.Code(root.ErrorCode) {
	case errors.ErrCodePackageNotFound:
		return errors.PackageNotFound(name, version)
	case errors.ErrCodeExternalAPI:
		return errors.New(errors.ErrCodeExternalAPI, "%s", root.Error)
	default:
		return errors.Resolution(name, root.Error)
	}
}

// CalculateHealth returns the health score of name. Unknown packages fail
// with PACKAGE_NOT_FOUND.
func (a *App) CalculateHealth(ctx context.Context, name string) (health.Score, error) {
	if err := errors.ValidateNpmPackageName(name); err != nil {
		return health.Score{}, err
	}
	if _, err := a.Packages.FindByName(ctx, name, packages.DefaultVersion); err != nil {
		return health.Score{}, err
	}
	return a.Health.Calculate(ctx, name), nil
}

// FindPackage returns metadata for name at version.
func (a *App) FindPackage(ctx context.Context, name, version string) (*packages.Metadata, error) {
	if err := errors.ValidateNpmPackageName(name); err != nil {
		return nil, err
	}
	return a.Packages.FindByName(ctx, name, version)
}

// SearchPackages runs a registry search. limit is clamped to
// [1, MaxSearchLimit].
func (a *App) SearchPackages(ctx context.Context, query string, limit int) ([]packages.SearchResult, error) {
	return a.Packages.Search(ctx, query, ClampSearchLimit(limit))
}

// Breakers reports the circuit state of each upstream host contacted so far,
// "open" or "closed". Apps built with [Assemble] report none.
func (a *App) Breakers() map[string]string {
	if a.breakers == nil {
		return map[string]string{}
	}
	return a.breakers.States()
}

// ClampSearchLimit bounds a requested search limit to [1, MaxSearchLimit].
// Callers substitute DefaultSearchLimit when no limit was given.
func ClampSearchLimit(limit int) int {
	return max(1, min(limit, MaxSearchLimit))
}
