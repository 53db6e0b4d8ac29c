// Package render draws resolved dependency trees.
//
// [Text] produces an indented terminal tree styled with lipgloss, one line
// per placement, colored by health level. The [nodelink] subpackage
// produces Graphviz DOT and SVG node-link diagrams.
//
// [nodelink]: github.com/matzehuels/pkghealth/pkg/render/nodelink
package render
