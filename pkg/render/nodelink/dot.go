package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/pkghealth/pkg/deps"
	"github.com/matzehuels/pkghealth/pkg/health"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed adds the health breakdown to node labels.
	// When false, labels show name, version and overall score.
	Detailed bool
}

var levelFill = map[health.Level]string{
	health.LevelHealthy:  "#c8e6c9",
	health.LevelWarning:  "#fff3b0",
	health.LevelCritical: "#ffcdd2",
	health.LevelUnknown:  "#eeeeee",
}

// ToDOT converts a tree to Graphviz DOT format. Nodes and edges appear in
// depth-first declaration order, each at most once.
func ToDOT(t *deps.Tree, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	if t == nil || t.Root == nil {
		buf.WriteString("}\n")
		return buf.String()
	}

	var (
		nodes  []*deps.Node
		edges  [][2]string
		seen   = map[string]bool{}
		linked = map[[2]string]bool{}
	)
	t.Root.Walk(func(n *deps.Node) bool {
		if n.Parent != "" {
			e := [2]string{n.Parent, n.ID}
			if !linked[e] {
				linked[e] = true
				edges = append(edges, e)
			}
		}
		if seen[n.ID] {
			return true
		}
		seen[n.ID] = true
		nodes = append(nodes, n)
		return true
	})

	for _, n := range nodes {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(fmtAttrs(n, fmtLabel(n, opts.Detailed)), ", "))
	}

	buf.WriteString("\n")
	for _, e := range edges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e[0], e[1])
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n *deps.Node, detailed bool) string {
	label := n.Name + "@" + n.Version
	switch {
	case n.IsCircular:
		return label + "\n(circular)"
	case n.HasError:
		return label + "\n(error)"
	}

	label += fmt.Sprintf("\n%d %s", n.Health.Overall, n.Health.Level)
	if detailed {
		b := n.Health.Breakdown
		label += fmt.Sprintf("\nmaint %d · pop %d · act %d · sec %d",
			b.Maintenance, b.Popularity, b.Activity, b.Security)
	}
	return label
}

func fmtAttrs(n *deps.Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case n.IsCircular:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	case n.HasError:
		attrs = append(attrs, "fillcolor=\"#ffcdd2\"", "color=\"#c62828\"")
	default:
		fill, ok := levelFill[n.Health.Level]
		if !ok {
			fill = levelFill[health.LevelUnknown]
		}
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", fill))
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg element with one
// whose width and height match the viewBox.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
