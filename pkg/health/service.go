// Package health computes composite package health scores.
//
// A [Score] combines four sub-scores in [0,100]: maintenance (recency of the
// last publish), popularity (weekly downloads, log scale), activity (issue
// closing ratio) and security (advisory penalties). The overall score is
// their weighted sum and maps to a [Level].
//
// [Service] is cache-aside per package name. Health is a property of the
// package identity, so the version that triggered a lookup is not part of
// the key.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pkghealth/pkg/cache"
	"github.com/matzehuels/pkghealth/pkg/packages"
)

// batchConcurrency bounds metadata lookups in CalculateBatch.
const batchConcurrency = 10

// MetadataSource supplies registry metadata.
type MetadataSource interface {
	FindByName(ctx context.Context, name, version string) (*packages.Metadata, error)
}

// Analyzer supplies analysis data. Implementations never fail; they return
// EmptyAnalysis instead.
type Analyzer interface {
	FetchScore(ctx context.Context, name string) AnalysisData
	FetchScoresBatch(ctx context.Context, names []string) map[string]AnalysisData
}

// Service calculates and caches health scores.
type Service struct {
	packages MetadataSource
	analyzer Analyzer
	cache    cache.Cache
	logger   *log.Logger
	now      func() time.Time
}

// NewService creates a health service. A nil cache disables caching and a
// nil logger uses log.Default().
func NewService(pkgs MetadataSource, analyzer Analyzer, c cache.Cache, logger *log.Logger) *Service {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		packages: pkgs,
		analyzer: analyzer,
		cache:    c,
		logger:   logger,
		now:      time.Now,
	}
}

// Calculate returns the health score for name. Metadata failures are
// logged and scored as missing metadata; they never fail the call.
func (s *Service) Calculate(ctx context.Context, name string) Score {
	score, _ := cache.ReadThrough(ctx, s.cache, cache.HealthKey(name), cache.HealthTTL,
		func(ctx context.Context) (Score, error) {
			var (
				modified string
				analysis AnalysisData
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				modified = s.lastModified(gctx, name)
				return nil
			})
			g.Go(func() error {
				analysis = s.analyzer.FetchScore(gctx, name)
				return nil
			})
			_ = g.Wait()

			return Compute(modified, analysis, s.now()), nil
		})
	return score
}

// CalculateBatch returns a score for every name. Cached scores are used as
// is; the rest share one batched analysis request and look up metadata
// individually.
func (s *Service) CalculateBatch(ctx context.Context, names []string) map[string]Score {
	results := make(map[string]Score, len(names))
	var uncached []string
	for _, name := range names {
		if _, seen := results[name]; seen {
			continue
		}
		if score, ok := cache.Load[Score](ctx, s.cache, cache.HealthKey(name)); ok {
			results[name] = score
			continue
		}
		results[name] = Score{}
		uncached = append(uncached, name)
	}
	if len(uncached) == 0 {
		return results
	}

	analyses := s.analyzer.FetchScoresBatch(ctx, uncached)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, name := range uncached {
		g.Go(func() error {
			analysis, ok := analyses[name]
			if !ok {
				analysis = EmptyAnalysis()
			}
			score := Compute(s.lastModified(gctx, name), analysis, s.now())
			if gctx.Err() == nil {
				_ = cache.Store(gctx, s.cache, cache.HealthKey(name), score, cache.HealthTTL)
			}

			mu.Lock()
			results[name] = score
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// lastModified returns the package's last-modified timestamp, or "" when
// metadata is unavailable.
func (s *Service) lastModified(ctx context.Context, name string) string {
	meta, err := s.packages.FindByName(ctx, name, packages.DefaultVersion)
	if err != nil {
		s.logger.Debug("metadata unavailable for health score", "package", name, "error", err)
		return ""
	}
	if meta == nil || meta.Time == nil {
		return ""
	}
	return meta.Time.Modified
}
