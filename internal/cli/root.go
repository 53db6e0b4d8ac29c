package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/pkghealth/pkg/config"
)

// Execute runs the pkghealth CLI and returns an error if any command fails.
// This is the main entry point for the CLI application.
//
// Before any command runs, KEY=VALUE pairs from ./.env are loaded into the
// environment (existing variables win) and the logger is attached to the
// command context.
//
// Logging:
//   - Default: info level (logs to stderr)
//   - With --verbose (-v): debug level
//
// Example:
//
//	func main() {
//	    if err := cli.Execute(context.Background()); err != nil {
//	        os.Exit(1)
//	    }
//	}
func Execute(ctx context.Context) error {
	return newRoot().ExecuteContext(ctx)
}

func newRoot() *cobra.Command {
	var verbose bool

	c := New(os.Stderr, LogInfo)
	root := c.RootCommand()
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := LogInfo
		if verbose {
			level = LogDebug
		}
		c.SetLogLevel(level)

		if err := config.LoadDotEnv(); err != nil {
			c.Logger.Warn("ignoring .env", "error", err)
		}
		cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		return nil
	}

	return root
}
