package deps

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/pkghealth/pkg/cache"
	"github.com/matzehuels/pkghealth/pkg/errors"
	"github.com/matzehuels/pkghealth/pkg/health"
	"github.com/matzehuels/pkghealth/pkg/packages"
)

// fakeRegistry serves a fixed package graph. Every name resolves to
// version 1.0.0 regardless of the requested range.
type fakeRegistry struct {
	graph map[string][]string
	delay time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeRegistry) FindByName(_ context.Context, name, version string) (*packages.Metadata, error) {
	f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.peak.Load()
		if cur <= old || f.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	deps, ok := f.graph[name]
	if !ok {
		return nil, errors.PackageNotFound(name, version)
	}
	m := &packages.Metadata{Name: name, Version: "1.0.0", Dependencies: packages.Dependencies{}}
	for _, d := range deps {
		m.Dependencies = append(m.Dependencies, packages.Dependency{Name: d, Range: "^1.0.0"})
	}
	return m, nil
}

type fakeHealth struct {
	mu     sync.Mutex
	scores map[string]int
}

func (f *fakeHealth) Calculate(_ context.Context, name string) health.Score {
	f.mu.Lock()
	defer f.mu.Unlock()
	overall, ok := f.scores[name]
	if !ok {
		overall = 75
	}
	s := health.EmptyScore()
	s.Overall = overall
	s.Level = health.GetLevel(overall)
	return s
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestResolver(reg *fakeRegistry, c cache.Cache) *Resolver {
	r := NewResolver(reg, &fakeHealth{}, c, nil)
	r.now = func() time.Time { return fixedNow }
	return r
}

func TestResolveCycle(t *testing.T) {
	reg := &fakeRegistry{graph: map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}}
	tree, err := newTestResolver(reg, nil).Resolve(context.Background(), "a", "latest", 5)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	root := tree.Root
	if root.ID != "a@1.0.0" || len(root.Dependencies) != 1 {
		t.Fatalf("root = %s with %d deps", root.ID, len(root.Dependencies))
	}
	b := root.Dependencies[0]
	if b.ID != "b@1.0.0" || b.Parent != "a@1.0.0" || b.Depth != 1 {
		t.Fatalf("child = %+v", b)
	}
	if len(b.Dependencies) != 1 {
		t.Fatalf("b has %d deps, want 1", len(b.Dependencies))
	}
	back := b.Dependencies[0]
	if !back.IsCircular || back.ID != "a@1.0.0:circular" || len(back.Dependencies) != 0 {
		t.Errorf("grandchild = %+v, want circular sentinel", back)
	}
	if back.Health.Level != health.LevelUnknown {
		t.Errorf("circular level = %q, want unknown", back.Health.Level)
	}

	if tree.Stats.TotalPackages != 3 || tree.Stats.UniquePackages != 3 {
		t.Errorf("stats = %+v, want 3 total and 3 unique", tree.Stats)
	}
	if tree.Stats.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", tree.Stats.MaxDepth)
	}
}

func TestResolveMissingDependency(t *testing.T) {
	reg := &fakeRegistry{graph: map[string][]string{
		"root":  {"left", "ghost", "right"},
		"left":  nil,
		"right": nil,
	}}
	tree, err := newTestResolver(reg, nil).Resolve(context.Background(), "root", "", 3)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	children := tree.Root.Dependencies
	if len(children) != 3 {
		t.Fatalf("len(children) = %d, want 3", len(children))
	}
	ghost := children[1]
	if !ghost.HasError || !strings.HasSuffix(ghost.ID, ":error") {
		t.Errorf("ghost = %+v, want error node", ghost)
	}
	if ghost.ID != "ghost@^1.0.0:error" {
		t.Errorf("ghost ID = %q", ghost.ID)
	}
	if ghost.ErrorCode != string(errors.ErrCodePackageNotFound) {
		t.Errorf("ErrorCode = %q", ghost.ErrorCode)
	}
	if children[0].HasError || children[2].HasError {
		t.Error("siblings of a failed dependency must resolve")
	}
	if tree.Stats.HealthDistribution[health.LevelUnknown] != 1 {
		t.Errorf("distribution = %v", tree.Stats.HealthDistribution)
	}
}

func TestResolveRootError(t *testing.T) {
	reg := &fakeRegistry{graph: map[string][]string{}}
	c := cache.NewMemoryCache()
	tree, err := newTestResolver(reg, c).Resolve(context.Background(), "nope", "2.0.0", 5)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !tree.Root.HasError || tree.Root.ID != "nope@2.0.0:error" {
		t.Errorf("root = %+v, want error node", tree.Root)
	}
	if tree.Stats.TotalPackages != 1 {
		t.Errorf("TotalPackages = %d, want 1", tree.Stats.TotalPackages)
	}
	if c.Len() != 0 {
		t.Error("a tree with a failed root must not be cached")
	}
}

func chain(n int) map[string][]string {
	g := make(map[string][]string, n)
	for i := range n {
		g["p"+strconv.Itoa(i)] = []string{"p" + strconv.Itoa(i+1)}
	}
	g["p"+strconv.Itoa(n)] = nil
	return g
}

func TestResolveDepthClamp(t *testing.T) {
	tests := []struct {
		depth     int
		wantDepth int
	}{
		{0, 1},
		{-3, 1},
		{1, 1},
		{7, 7},
		{999, 10},
	}
	for _, tt := range tests {
		reg := &fakeRegistry{graph: chain(20)}
		tree, err := newTestResolver(reg, nil).Resolve(context.Background(), "p0", "latest", tt.depth)
		if err != nil {
			t.Fatalf("Resolve(depth=%d): %v", tt.depth, err)
		}
		if tree.Stats.MaxDepth != tt.wantDepth {
			t.Errorf("depth %d: MaxDepth = %d, want %d", tt.depth, tree.Stats.MaxDepth, tt.wantDepth)
		}
	}
}

func TestResolveDepthClampSharesCacheKey(t *testing.T) {
	c := cache.NewMemoryCache()
	reg := &fakeRegistry{graph: chain(20)}
	r := newTestResolver(reg, c)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "p0", "latest", 999); err != nil {
		t.Fatal(err)
	}
	calls := reg.calls.Load()
	if _, err := r.Resolve(ctx, "p0", "latest", 10); err != nil {
		t.Fatal(err)
	}
	if reg.calls.Load() != calls {
		t.Error("depth 10 should hit the entry cached for depth 999")
	}
	if _, ok, _ := c.Get(ctx, cache.TreeKey("p0", "latest", 10)); !ok {
		t.Error("expected tree:p0:latest:10")
	}
}

func TestResolveMemoizesSharedDependency(t *testing.T) {
	reg := &fakeRegistry{graph: map[string][]string{
		"app":    {"left", "right"},
		"left":   {"shared"},
		"right":  {"shared"},
		"shared": {"leaf"},
		"leaf":   nil,
	}}
	tree, err := newTestResolver(reg, nil).Resolve(context.Background(), "app", "latest", 5)
	if err != nil {
		t.Fatal(err)
	}

	var placements []*Node
	tree.Root.Walk(func(n *Node) bool {
		if n.Name == "shared" {
			placements = append(placements, n)
		}
		return true
	})
	if len(placements) != 2 {
		t.Fatalf("shared placements = %d, want 2", len(placements))
	}
	parents := map[string]bool{placements[0].Parent: true, placements[1].Parent: true}
	if !parents["left@1.0.0"] || !parents["right@1.0.0"] {
		t.Errorf("parents = %v, want left and right", parents)
	}
	for _, p := range placements {
		if len(p.Dependencies) != 1 || p.Dependencies[0].ID != "leaf@1.0.0" {
			t.Errorf("placement under %s lost its subtree", p.Parent)
		}
	}

	if tree.Stats.TotalPackages != 7 {
		t.Errorf("TotalPackages = %d, want 7", tree.Stats.TotalPackages)
	}
	if tree.Stats.UniquePackages != 5 {
		t.Errorf("UniquePackages = %d, want 5", tree.Stats.UniquePackages)
	}
}

func TestResolvePreservesOrder(t *testing.T) {
	var names []string
	graph := map[string][]string{}
	for i := range 25 {
		n := "dep" + strconv.Itoa(i)
		names = append(names, n)
		graph[n] = nil
	}
	graph["root"] = names
	reg := &fakeRegistry{graph: graph, delay: 2 * time.Millisecond}

	tree, err := newTestResolver(reg, nil).Resolve(context.Background(), "root", "latest", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Root.Dependencies) != 25 {
		t.Fatalf("len = %d, want 25", len(tree.Root.Dependencies))
	}
	for i, child := range tree.Root.Dependencies {
		if child.Name != names[i] {
			t.Fatalf("child %d = %s, want %s", i, child.Name, names[i])
		}
	}
	if peak := reg.peak.Load(); peak > BatchSize {
		t.Errorf("peak concurrency = %d, want <= %d", peak, BatchSize)
	}
}

func TestResolveIdempotent(t *testing.T) {
	reg := &fakeRegistry{graph: map[string][]string{
		"a": {"b", "c"},
		"b": {"c"},
		"c": nil,
	}}
	r := newTestResolver(reg, cache.NewMemoryCache())
	ctx := context.Background()

	first, err := r.Resolve(ctx, "a", "latest", 5)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve(ctx, "a", "latest", 5)
	if err != nil {
		t.Fatal(err)
	}

	b1, _ := json.Marshal(first)
	b2, _ := json.Marshal(second)
	if !bytes.Equal(b1, b2) {
		t.Errorf("trees differ:\n%s\n%s", b1, b2)
	}
}

func TestResolveConcurrentCallsIsolated(t *testing.T) {
	reg := &fakeRegistry{graph: map[string][]string{
		"a": {"b"},
		"b": {"a"},
		"x": {"a"},
	}, delay: time.Millisecond}
	r := newTestResolver(reg, nil)

	var wg sync.WaitGroup
	trees := make([]*Tree, 8)
	for i := range trees {
		wg.Add(1)
		go func() {
			defer wg.Done()
			root := "a"
			if i%2 == 1 {
				root = "x"
			}
			trees[i], _ = r.Resolve(context.Background(), root, "latest", 5)
		}()
	}
	wg.Wait()

	for i, tree := range trees {
		if tree == nil {
			t.Fatalf("tree %d is nil", i)
		}
		if tree.Root.IsCircular {
			t.Errorf("tree %d: root marked circular by another resolution", i)
		}
	}
}

func TestResolveCancelled(t *testing.T) {
	reg := &fakeRegistry{graph: map[string][]string{"a": nil}}
	c := cache.NewMemoryCache()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestResolver(reg, c).Resolve(ctx, "a", "latest", 5); err == nil {
		t.Fatal("expected context error")
	}
	if c.Len() != 0 {
		t.Error("cancelled resolution must not be cached")
	}
}

func TestClampDepth(t *testing.T) {
	for in, want := range map[int]int{-1: 1, 0: 1, 1: 1, 5: 5, 10: 10, 11: 10} {
		if got := ClampDepth(in); got != want {
			t.Errorf("ClampDepth(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestIsSentinel(t *testing.T) {
	tests := []struct {
		node Node
		want bool
	}{
		{Node{ID: "a@1.0.0"}, false},
		{Node{ID: "a@1.0.0:circular", IsCircular: true}, true},
		{Node{ID: "b@^1:error", HasError: true}, true},
	}
	for _, tt := range tests {
		if got := tt.node.IsSentinel(); got != tt.want {
			t.Errorf("%s.IsSentinel() = %v, want %v", tt.node.ID, got, tt.want)
		}
	}
}

func TestPURL(t *testing.T) {
	if got := PURL("lodash", "4.17.21"); got != "pkg:npm/lodash@4.17.21" {
		t.Errorf("PURL = %q", got)
	}
	if got := PURL("@babel/core", "7.0.0"); !strings.HasPrefix(got, "pkg:npm/") || !strings.HasSuffix(got, "/core@7.0.0") {
		t.Errorf("scoped PURL = %q", got)
	}
}

func TestCalculateStats(t *testing.T) {
	leaf := &Node{ID: "c@1", Depth: 2, Health: health.Score{Level: health.LevelCritical}}
	root := &Node{ID: "a@1", Health: health.Score{Level: health.LevelHealthy}, Dependencies: []*Node{
		{ID: "b@1", Depth: 1, Health: health.Score{Level: health.LevelWarning}, Dependencies: []*Node{leaf}},
		{ID: "c@1", Depth: 1, Health: health.Score{Level: health.LevelCritical}},
	}}

	s := CalculateStats(root)
	if s.TotalPackages != 4 || s.UniquePackages != 3 || s.MaxDepth != 2 {
		t.Errorf("stats = %+v", s)
	}
	want := map[health.Level]int{
		health.LevelHealthy:  1,
		health.LevelWarning:  1,
		health.LevelCritical: 2,
		health.LevelUnknown:  0,
	}
	for l, n := range want {
		if s.HealthDistribution[l] != n {
			t.Errorf("distribution[%s] = %d, want %d", l, s.HealthDistribution[l], n)
		}
	}
	if s.UniquePackages > s.TotalPackages {
		t.Error("unique exceeds total")
	}
}
