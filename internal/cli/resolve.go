package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pkghealth/pkg/deps"
	"github.com/matzehuels/pkghealth/pkg/errors"
	"github.com/matzehuels/pkghealth/pkg/render"
	"github.com/matzehuels/pkghealth/pkg/render/nodelink"
)

// Output formats for resolve.
const (
	formatTree = "tree"
	formatJSON = "json"
	formatDOT  = "dot"
	formatSVG  = "svg"
)

var resolveFormats = []string{formatTree, formatJSON, formatDOT, formatSVG}

// resolveOptions holds flags for the resolve command.
type resolveOptions struct {
	depth    int
	format   string
	output   string
	detailed bool
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	opts := resolveOptions{depth: deps.DefaultMaxDepth, format: formatTree}

	cmd := &cobra.Command{
		Use:   "resolve <package[@version]>",
		Short: "Resolve a package's dependency tree and score every node",
		Long: `Resolve fetches the transitive production dependencies of an npm package,
scores each package and prints the annotated tree.

Version ranges such as ^1.2.0 are resolved to the highest matching release.`,
		Example: `  pkghealth resolve express
  pkghealth resolve @babel/core@7.24.0 --depth 3
  pkghealth resolve react -f svg -o react.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.depth, "depth", "d", opts.depth, fmt.Sprintf("maximum tree depth (%d-%d)", deps.MinDepth, deps.MaxDepth))
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: "+strings.Join(resolveFormats, ", "))
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write output to file instead of stdout")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include scores in dot/svg node labels")

	return cmd
}

func (c *CLI) runResolve(ctx context.Context, stdout io.Writer, spec string, opts resolveOptions) error {
	if !slices.Contains(resolveFormats, opts.format) {
		return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want one of %s)", opts.format, strings.Join(resolveFormats, ", "))
	}

	a, err := c.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	name, version := splitSpec(spec)
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	spin := newSpinner(ctx, os.Stderr, fmt.Sprintf("Resolving %s@%s...", name, version))
	spin.Start()
	tree, err := a.ResolveDependencyTree(ctx, name, version, opts.depth)
	spin.Stop()
	if err != nil {
		return err
	}
	prog.done("resolved", "root", tree.Root.ID, "packages", tree.Stats.TotalPackages, "unique", tree.Stats.UniquePackages)

	out, err := renderTree(ctx, tree, opts)
	if err != nil {
		return err
	}

	if opts.output == "" {
		if _, err := stdout.Write(out); err != nil {
			return err
		}
		if opts.format == formatTree {
			printNextStep(os.Stderr, "Explore interactively", "pkghealth browse "+spec)
		}
		return nil
	}
	if err := os.WriteFile(opts.output, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	printSuccess(stdout, "Resolved %s", deps.NodeID(tree.Root.Name, tree.Root.Version))
	printStats(stdout, tree.Stats)
	printFile(stdout, opts.output)
	return nil
}

// renderTree renders tree in the requested format.
func renderTree(ctx context.Context, tree *deps.Tree, opts resolveOptions) ([]byte, error) {
	switch opts.format {
	case formatJSON:
		data, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case formatDOT:
		return []byte(nodelink.ToDOT(tree, nodelink.Options{Detailed: opts.detailed})), nil
	case formatSVG:
		return nodelink.RenderSVG(ctx, nodelink.ToDOT(tree, nodelink.Options{Detailed: opts.detailed}))
	default:
		return []byte(render.Text(tree) + "\n\n" + render.Summary(tree.Stats)), nil
	}
}
