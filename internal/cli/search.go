package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkghealth/pkg/app"
	"github.com/matzehuels/pkghealth/pkg/packages"
)

// searchCommand creates the search command.
func (c *CLI) searchCommand() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the npm registry",
		Example: `  pkghealth search "date picker"
  pkghealth search lodash --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSearch(cmd.Context(), cmd.OutOrStdout(), strings.Join(args, " "), limit, asJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", app.DefaultSearchLimit, fmt.Sprintf("maximum results (1-%d)", app.MaxSearchLimit))
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func (c *CLI) runSearch(ctx context.Context, w io.Writer, query string, limit int, asJSON bool) error {
	a, err := c.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.SearchPackages(ctx, query, limit)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		printInfo(w, "No packages match %q", query)
		return nil
	}
	fmt.Fprintln(w, searchTable(results))
	printNextStep(w, "Score a result", "pkghealth health "+results[0].Name)
	return nil
}

// searchTable renders results with descriptions cut to fit one line.
func searchTable(results []packages.SearchResult) string {
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{r.Name, r.Version, truncate(r.Description, 60)}
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Package", "Version", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == -1:
				return styleHeader.Padding(0, 1)
			case col == 0:
				return base.Foreground(colorGreen)
			case col == 1:
				return base.Foreground(colorCyan)
			}
			return base.Foreground(colorGray)
		}).
		String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
