package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/pkghealth/pkg/deps"
	"github.com/matzehuels/pkghealth/pkg/health"
	"github.com/matzehuels/pkghealth/pkg/render"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// TreeModel - Interactive dependency tree browser
// =============================================================================

// treeRow is one visible line of the browser.
type treeRow struct {
	node   *deps.Node
	indent int
	parent int // row index of the parent, -1 for the root
}

// TreeModel is the bubbletea model for browsing a resolved tree.
type TreeModel struct {
	Tree     *deps.Tree
	Expanded map[*deps.Node]bool
	Cursor   int
	Height   int
	Offset   int

	rows []treeRow
}

// NewTreeModel creates a browser with the root expanded.
func NewTreeModel(t *deps.Tree) TreeModel {
	m := TreeModel{
		Tree:     t,
		Expanded: map[*deps.Node]bool{t.Root: true},
		Height:   15,
	}
	m.rows = m.flatten()
	return m
}

// flatten lists the nodes reachable through expanded ancestors.
func (m TreeModel) flatten() []treeRow {
	var rows []treeRow
	var visit func(n *deps.Node, indent, parent int)
	visit = func(n *deps.Node, indent, parent int) {
		rows = append(rows, treeRow{node: n, indent: indent, parent: parent})
		if !m.Expanded[n] {
			return
		}
		self := len(rows) - 1
		for _, child := range n.Dependencies {
			visit(child, indent+1, self)
		}
	}
	if m.Tree != nil && m.Tree.Root != nil {
		visit(m.Tree.Root, 0, -1)
	}
	return rows
}

// Selected returns the node under the cursor.
func (m TreeModel) Selected() *deps.Node {
	if m.Cursor < 0 || m.Cursor >= len(m.rows) {
		return nil
	}
	return m.rows[m.Cursor].node
}

func (m TreeModel) Init() tea.Cmd {
	return nil
}

func (m TreeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.rows)-1 {
				m.Cursor++
			}
		case "enter", " ", "right", "l":
			if n := m.Selected(); n != nil && len(n.Dependencies) > 0 {
				m.Expanded[n] = !m.Expanded[n]
			}
		case "left", "h":
			if n := m.Selected(); n != nil {
				if m.Expanded[n] && len(n.Dependencies) > 0 {
					m.Expanded[n] = false
				} else if p := m.rows[m.Cursor].parent; p >= 0 {
					m.Cursor = p
				}
			}
		case "e":
			m.Tree.Root.Walk(func(n *deps.Node) bool {
				m.Expanded[n] = true
				return true
			})
		case "c":
			m.Expanded = map[*deps.Node]bool{m.Tree.Root: true}
			m.Cursor = 0
		}
		m.rows = m.flatten()
		m.Cursor = min(m.Cursor, len(m.rows)-1)
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-16, 5)
	}
	m.scroll()
	return m, nil
}

// scroll keeps the cursor inside the visible window.
func (m *TreeModel) scroll() {
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m TreeModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Dependency Tree"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ expand  ← collapse  e/c expand/collapse all  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.rows))
	for i := m.Offset; i < end; i++ {
		r := m.rows[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = listSelectedStyle.Render("▸ ")
		}
		marker := "  "
		if len(r.node.Dependencies) > 0 {
			marker = "+ "
			if m.Expanded[r.node] {
				marker = "- "
			}
		}
		b.WriteString(cursor + strings.Repeat("  ", r.indent) + listDimStyle.Render(marker) + render.Label(r.node))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if n := m.Selected(); n != nil {
		b.WriteString(nodeDetail(n))
		b.WriteString("\n")
	}
	printStats(&b, m.Tree.Stats)
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.rows))))

	return b.String()
}

// nodeDetail renders the score breakdown of n.
func nodeDetail(n *deps.Node) string {
	if n.IsSentinel() {
		if n.IsCircular {
			return listDimStyle.Render(n.ID + " repeats an ancestor; see the first occurrence")
		}
		return render.LevelStyle(health.LevelCritical).Render(fmt.Sprintf("%s: %s", n.ErrorCode, n.Error))
	}

	h := n.Health
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Overall", "Maint", "Pop", "Activity", "Security", "Vulns", "Weekly", "Published").
		Row(
			levelBadge(h),
			strconv.Itoa(h.Breakdown.Maintenance),
			strconv.Itoa(h.Breakdown.Popularity),
			strconv.Itoa(h.Breakdown.Activity),
			strconv.Itoa(h.Breakdown.Security),
			strconv.Itoa(len(h.Vulnerabilities)),
			formatDownloads(h.WeeklyDownloads),
			formatRelativeTime(h.LastPublish),
		).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1).Foreground(colorGray)
		})

	return StyleValue.Render(n.PURL) + "\n" + t.Render()
}

// =============================================================================
// Helpers
// =============================================================================

func formatRelativeTime(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}

	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
