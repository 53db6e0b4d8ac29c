package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkghealth/pkg/deps"
)

// browseCommand creates the interactive tree browser command.
func (c *CLI) browseCommand() *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "browse <package[@version]>",
		Short: "Explore a dependency tree interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			name, version := splitSpec(args[0])
			spin := newSpinner(ctx, os.Stderr, fmt.Sprintf("Resolving %s@%s...", name, version))
			spin.Start()
			tree, err := a.ResolveDependencyTree(ctx, name, version, depth)
			spin.Stop()
			if err != nil {
				return err
			}

			_, err = tea.NewProgram(NewTreeModel(tree), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", deps.DefaultMaxDepth, fmt.Sprintf("maximum tree depth (%d-%d)", deps.MinDepth, deps.MaxDepth))
	return cmd
}
