package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/matzehuels/pkghealth/pkg/deps"
	"github.com/matzehuels/pkghealth/pkg/health"
)

var (
	levelStyles = map[health.Level]lipgloss.Style{
		health.LevelHealthy:  lipgloss.NewStyle().Foreground(lipgloss.Color("35")),
		health.LevelWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		health.LevelCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("167")),
		health.LevelUnknown:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
	styleName       = lipgloss.NewStyle().Bold(true)
	styleDim        = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleEnumerator = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginRight(1)
)

// LevelStyle returns the style used for a health level.
func LevelStyle(l health.Level) lipgloss.Style {
	if s, ok := levelStyles[l]; ok {
		return s
	}
	return levelStyles[health.LevelUnknown]
}

// Text renders t as an indented tree.
func Text(t *deps.Tree) string {
	if t == nil || t.Root == nil {
		return ""
	}
	return build(t.Root).String()
}

func build(n *deps.Node) *tree.Tree {
	tr := tree.Root(Label(n)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(styleEnumerator)
	for _, child := range n.Dependencies {
		if len(child.Dependencies) == 0 {
			tr.Child(Label(child))
			continue
		}
		tr.Child(build(child))
	}
	return tr
}

// Label formats one node: name@version, then its score or sentinel marker.
func Label(n *deps.Node) string {
	name := styleName.Render(n.Name) + styleDim.Render("@"+n.Version)
	if !n.IsSentinel() {
		score := fmt.Sprintf("%d %s", n.Health.Overall, n.Health.Level)
		return name + " " + LevelStyle(n.Health.Level).Render(score)
	}
	if n.IsCircular {
		return name + " " + styleDim.Render("(circular)")
	}
	msg := n.Error
	if msg == "" {
		msg = "unavailable"
	}
	return name + " " + LevelStyle(health.LevelCritical).Render("error: "+msg)
}

// Summary formats tree statistics on a few lines.
func Summary(s deps.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d packages (%d unique), max depth %d\n", s.TotalPackages, s.UniquePackages, s.MaxDepth)
	parts := make([]string, 0, len(health.Levels))
	for _, l := range health.Levels {
		parts = append(parts, LevelStyle(l).Render(fmt.Sprintf("%s %d", l, s.HealthDistribution[l])))
	}
	b.WriteString(strings.Join(parts, styleDim.Render("  ·  ")))
	b.WriteByte('\n')
	return b.String()
}
