package deps

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/pkghealth/pkg/cache"
	"github.com/matzehuels/pkghealth/pkg/errors"
	"github.com/matzehuels/pkghealth/pkg/health"
	"github.com/matzehuels/pkghealth/pkg/observability"
	"github.com/matzehuels/pkghealth/pkg/packages"
)

// MetadataSource supplies package metadata.
type MetadataSource interface {
	FindByName(ctx context.Context, name, version string) (*packages.Metadata, error)
}

// HealthSource supplies health scores.
type HealthSource interface {
	Calculate(ctx context.Context, name string) health.Score
}

// Resolver builds dependency trees. It holds no per-resolution state and is
// safe for concurrent use.
type Resolver struct {
	packages MetadataSource
	health   HealthSource
	cache    cache.Cache
	logger   *log.Logger
	now      func() time.Time
}

// NewResolver creates a resolver. A nil cache disables tree caching and a
// nil logger uses log.Default().
func NewResolver(pkgs MetadataSource, hs HealthSource, c cache.Cache, logger *log.Logger) *Resolver {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		packages: pkgs,
		health:   hs,
		cache:    c,
		logger:   logger,
		now:      time.Now,
	}
}

// Resolve returns the dependency tree of name at version (a dist-tag,
// concrete version or range; empty means "latest"). maxDepth is clamped
// with [ClampDepth].
//
// Failures below the root appear as error nodes. A root that cannot be
// fetched yields a tree whose root is an error node; callers decide whether
// that is fatal. Such trees are not cached. The only error returned is
// ctx's, when it is done before resolution finishes.
func (r *Resolver) Resolve(ctx context.Context, name, version string, maxDepth int) (*Tree, error) {
	if version == "" {
		version = packages.DefaultVersion
	}
	depth := ClampDepth(maxDepth)
	key := cache.TreeKey(name, version, depth)

	if tree, ok := cache.Load[*Tree](ctx, r.cache, key); ok {
		return tree, nil
	}

	tree, err := r.resolve(ctx, name, version, depth)
	if err != nil {
		return nil, err
	}
	if !tree.Root.HasError {
		_ = cache.Store(ctx, r.cache, key, tree, cache.TreeTTL)
	}
	return tree, nil
}

func (r *Resolver) resolve(ctx context.Context, name, version string, depth int) (*Tree, error) {
	start := time.Now()
	observability.Resolve().OnResolveStart(ctx, name, version, depth)

	res := &resolution{
		Resolver: r,
		maxDepth: depth,
		memo:     make(map[string]*Node),
	}
	root := res.node(ctx, name, version, 0, nil)

	if err := ctx.Err(); err != nil {
		observability.Resolve().OnResolveComplete(ctx, name, version, 0, time.Since(start), err)
		return nil, err
	}

	tree := &Tree{
		Root:       root,
		Stats:      CalculateStats(root),
		ResolvedAt: r.now().UTC(),
	}
	observability.Resolve().OnResolveComplete(ctx, name, version, tree.Stats.TotalPackages, time.Since(start), nil)
	r.logger.Debug("resolved dependency tree",
		"package", name, "version", version, "depth", depth,
		"nodes", tree.Stats.TotalPackages, "unique", tree.Stats.UniquePackages,
		"duration", time.Since(start))
	return tree, nil
}

// resolution is the state of one Resolve call.
type resolution struct {
	*Resolver
	maxDepth int

	mu   sync.Mutex
	memo map[string]*Node
}

// path is the chain of node IDs from the root to the node being resolved.
// Each branch extends its own copy, so concurrent siblings never see each
// other's entries.
type path struct {
	id string
	up *path
}

func (p *path) contains(id string) bool {
	for ; p != nil; p = p.up {
		if p.id == id {
			return true
		}
	}
	return false
}

func (p *path) parentID() string {
	if p == nil {
		return ""
	}
	return p.id
}

func (s *resolution) node(ctx context.Context, name, version string, depth int, ancestors *path) *Node {
	if version == "" {
		version = packages.DefaultVersion
	}
	parent := ancestors.parentID()

	meta, err := s.packages.FindByName(ctx, name, version)
	if err != nil {
		s.logger.Debug("dependency unavailable", "package", name, "version", version, "error", err)
		return errorNode(name, version, depth, parent, err)
	}

	id := NodeID(meta.Name, meta.Version)

	s.mu.Lock()
	existing, ok := s.memo[id]
	s.mu.Unlock()
	if ok {
		cp := *existing
		cp.Parent = parent
		return &cp
	}

	if ancestors.contains(id) {
		return circularNode(meta.Name, meta.Version, depth, parent)
	}

	n := &Node{
		ID:           id,
		Name:         meta.Name,
		Version:      meta.Version,
		Health:       s.health.Calculate(ctx, meta.Name),
		Depth:        depth,
		Dependencies: []*Node{},
		Parent:       parent,
		PURL:         PURL(meta.Name, meta.Version),
	}

	if depth < s.maxDepth && len(meta.Dependencies) > 0 {
		n.Dependencies = s.children(ctx, meta.Dependencies, depth+1, &path{id: id, up: ancestors})
	}

	s.mu.Lock()
	s.memo[id] = n
	s.mu.Unlock()
	return n
}

// children resolves deps in batches of BatchSize, preserving order.
func (s *resolution) children(ctx context.Context, deps packages.Dependencies, depth int, ancestors *path) []*Node {
	out := make([]*Node, len(deps))
	for start := 0; start < len(deps); start += BatchSize {
		end := min(start+BatchSize, len(deps))

		var g errgroup.Group
		for i := start; i < end; i++ {
			dep := deps[i]
			g.Go(func() error {
				defer func() {
					if p := recover(); p != nil {
						err := errors.New(errors.ErrCodeInternal, "panic resolving %s: %v", dep.Name, p)
						s.logger.Error("dependency resolution panicked", "package", dep.Name, "panic", fmt.Sprint(p))
						out[i] = errorNode(dep.Name, dep.Range, depth, ancestors.id, err)
					}
				}()
				out[i] = s.node(ctx, dep.Name, dep.Range, depth, ancestors)
				return nil
			})
		}
		_ = g.Wait()
	}
	return out
}

func circularNode(name, version string, depth int, parent string) *Node {
	return &Node{
		ID:           NodeID(name, version) + circularSuffix,
		Name:         name,
		Version:      version,
		Health:       health.EmptyScore(),
		Depth:        depth,
		Dependencies: []*Node{},
		Parent:       parent,
		IsCircular:   true,
	}
}

func errorNode(name, version string, depth int, parent string, err error) *Node {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	return &Node{
		ID:           NodeID(name, version) + errorSuffix,
		Name:         name,
		Version:      version,
		Health:       health.EmptyScore(),
		Depth:        depth,
		Dependencies: []*Node{},
		Parent:       parent,
		HasError:     true,
		ErrorCode:    string(code),
		Error:        errors.UserMessage(err),
	}
}
