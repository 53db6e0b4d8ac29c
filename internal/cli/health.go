package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkghealth/pkg/errors"
	"github.com/matzehuels/pkghealth/pkg/health"
)

// healthCommand creates the health command.
func (c *CLI) healthCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health <package>...",
		Short: "Show health scores for one or more packages",
		Long: `Health scores each package from 0 to 100 across maintenance, popularity,
activity and security, and buckets the result as healthy, warning or critical.

A single package is checked against the registry first; unknown names fail.
Several packages are scored together in one batched analysis request.`,
		Example: `  pkghealth health lodash
  pkghealth health react vue svelte --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runHealth(cmd.Context(), cmd.OutOrStdout(), args, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print scores as JSON")
	return cmd
}

func (c *CLI) runHealth(ctx context.Context, w io.Writer, names []string, asJSON bool) error {
	for _, name := range names {
		if err := errors.ValidateNpmPackageName(name); err != nil {
			return err
		}
	}

	a, err := c.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	spin := newSpinner(ctx, os.Stderr, fmt.Sprintf("Scoring %d package(s)...", len(names)))
	spin.Start()
	scores := make(map[string]health.Score, len(names))
	if len(names) == 1 {
		s, err := a.CalculateHealth(ctx, names[0])
		if err != nil {
			spin.Stop()
			return err
		}
		scores[names[0]] = s
	} else {
		scores = a.Health.CalculateBatch(ctx, names)
	}
	if err := ctx.Err(); err != nil {
		spin.StopWithError("Cancelled")
		return err
	}
	spin.StopWithSuccess(fmt.Sprintf("Scored %d package(s)", len(scores)))

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(names) == 1 {
			return enc.Encode(scores[names[0]])
		}
		return enc.Encode(scores)
	}

	fmt.Fprintln(w, healthTable(names, scores))
	for _, name := range names {
		if vulns := scores[name].Vulnerabilities; len(vulns) > 0 {
			printWarning(w, "%s has %d known vulnerabilities", name, len(vulns))
			for _, v := range vulns {
				printDetail(w, "[%s] %s", v.Severity, v.Title)
			}
		}
	}
	return nil
}

// healthTable lays out one row per package, in argument order.
func healthTable(names []string, scores map[string]health.Score) string {
	seen := make(map[string]bool, len(names))
	var rows [][]string
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		s := scores[name]
		rows = append(rows, []string{
			name,
			levelBadge(s),
			strconv.Itoa(s.Breakdown.Maintenance),
			strconv.Itoa(s.Breakdown.Popularity),
			strconv.Itoa(s.Breakdown.Activity),
			strconv.Itoa(s.Breakdown.Security),
			formatDownloads(s.WeeklyDownloads),
			formatRelativeTime(s.LastPublish),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Package", "Health", "Maint", "Pop", "Activity", "Security", "Weekly", "Published").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == -1:
				return styleHeader.Padding(0, 1)
			case col == 0:
				return base.Bold(true)
			case col >= 2 && col <= 5:
				return base.Foreground(colorGray).Align(lipgloss.Right)
			}
			return base.Foreground(colorDim)
		}).
		String()
}

// formatDownloads abbreviates a download count (1.2k, 3.4M).
func formatDownloads(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}
