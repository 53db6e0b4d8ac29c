package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pkghealth/pkg/deps"
	"github.com/matzehuels/pkghealth/pkg/packages"
)

// infoCommand creates the info command.
func (c *CLI) infoCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info <package[@version]>",
		Short: "Show registry metadata for a package",
		Example: `  pkghealth info express
  pkghealth info lodash@4.17.21 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInfo(cmd.Context(), cmd.OutOrStdout(), args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print metadata as JSON")
	return cmd
}

func (c *CLI) runInfo(ctx context.Context, w io.Writer, spec string, asJSON bool) error {
	a, err := c.newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	name, version := splitSpec(spec)
	md, err := a.FindPackage(ctx, name, version)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(md)
	}
	printMetadata(w, md)
	return nil
}

func printMetadata(w io.Writer, md *packages.Metadata) {
	fmt.Fprintln(w, StyleTitle.Render(deps.NodeID(md.Name, md.Version)))
	if md.Description != "" {
		fmt.Fprintln(w, StyleDim.Render(md.Description))
	}
	fmt.Fprintln(w)

	printKeyValue(w, "License", md.License)
	if md.Repository != nil && md.Repository.URL != "" {
		printKeyValue(w, "Repository", StyleLink.Render(md.Repository.URL))
	}
	if md.Time != nil {
		printKeyValue(w, "Modified", formatRelativeTime(md.Time.Modified))
		printKeyValue(w, "Created", formatRelativeTime(md.Time.Created))
	}
	printKeyValue(w, "PURL", deps.PURL(md.Name, md.Version))

	if len(md.Maintainers) > 0 {
		names := make([]string, len(md.Maintainers))
		for i, m := range md.Maintainers {
			names[i] = m.Name
		}
		printKeyValue(w, "Maintainers", strings.Join(names, ", "))
	}

	printKeyValue(w, "Dependencies", StyleNumber.Render(fmt.Sprint(len(md.Dependencies))))
	for _, d := range md.Dependencies {
		printDetail(w, "%s %s", d.Name, d.Range)
	}
	if n := len(md.DevDependencies); n > 0 {
		printKeyValue(w, "Dev deps", StyleNumber.Render(fmt.Sprint(n)))
	}
}
