package deps

import (
	"strings"
	"time"

	"github.com/package-url/packageurl-go"

	"github.com/matzehuels/pkghealth/pkg/health"
)

const (
	DefaultMaxDepth = 5  // Depth used when the caller has no preference
	MinDepth        = 1  // Lower clamp for the depth limit
	MaxDepth        = 10 // Upper clamp for the depth limit
	BatchSize       = 10 // Children resolved concurrently per batch
)

// Sentinel ID suffixes.
const (
	circularSuffix = ":circular"
	errorSuffix    = ":error"
)

// Node is one placement of a package in a dependency tree.
type Node struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Health       health.Score `json:"health"`
	Depth        int          `json:"depth"`
	Dependencies []*Node      `json:"dependencies"`
	Parent       string       `json:"parent,omitempty"`
	IsCircular   bool         `json:"isCircular,omitempty"`
	HasError     bool         `json:"hasError,omitempty"`
	ErrorCode    string       `json:"errorCode,omitempty"`
	Error        string       `json:"error,omitempty"`
	PURL         string       `json:"purl,omitempty"`
}

// Tree is a resolved dependency tree.
type Tree struct {
	Root       *Node     `json:"root"`
	Stats      Stats     `json:"stats"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// Stats summarizes a tree as assembled. Packages reached along several
// branches count once per placement in TotalPackages and once in
// UniquePackages.
type Stats struct {
	TotalPackages      int                  `json:"totalPackages"`
	UniquePackages     int                  `json:"uniquePackages"`
	MaxDepth           int                  `json:"maxDepth"`
	HealthDistribution map[health.Level]int `json:"healthDistribution"`
}

// ClampDepth limits depth to [MinDepth, MaxDepth].
func ClampDepth(depth int) int {
	return min(max(depth, MinDepth), MaxDepth)
}

// NodeID returns the canonical "name@version" identifier.
func NodeID(name, version string) string {
	return name + "@" + version
}

// PURL returns the package URL for an npm package, splitting the scope of
// scoped names into the namespace.
func PURL(name, version string) string {
	namespace := ""
	if strings.HasPrefix(name, "@") {
		if i := strings.IndexByte(name, '/'); i > 0 {
			namespace, name = name[:i], name[i+1:]
		}
	}
	return packageurl.NewPackageURL(packageurl.TypeNPM, namespace, name, version, nil, "").ToString()
}

// Walk visits n and its descendants depth-first in declaration order.
// Returning false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, child := range n.Dependencies {
		child.Walk(fn)
	}
}

// IsSentinel reports whether n is a circular or error placeholder.
func (n *Node) IsSentinel() bool {
	return n.IsCircular || n.HasError
}

// CalculateStats traverses the assembled tree once.
func CalculateStats(root *Node) Stats {
	s := Stats{HealthDistribution: make(map[health.Level]int, len(health.Levels))}
	for _, l := range health.Levels {
		s.HealthDistribution[l] = 0
	}

	seen := make(map[string]struct{})
	root.Walk(func(n *Node) bool {
		s.TotalPackages++
		seen[n.ID] = struct{}{}
		s.MaxDepth = max(s.MaxDepth, n.Depth)
		s.HealthDistribution[n.Health.Level]++
		return true
	})
	s.UniquePackages = len(seen)
	return s
}
