// Package nodelink renders dependency trees as node-link diagrams.
//
// Convert a tree to DOT, then render to SVG:
//
//	dot := nodelink.ToDOT(tree, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Each distinct node ID becomes one box, filled by health level, so a
// package reached along several branches is drawn once with several
// incoming edges. Circular sentinels are dashed and error sentinels are
// drawn in red.
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering.
package nodelink
