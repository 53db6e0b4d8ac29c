package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkghealth/pkg/app"
	"github.com/matzehuels/pkghealth/pkg/buildinfo"
	"github.com/matzehuels/pkghealth/pkg/config"
	"github.com/matzehuels/pkghealth/pkg/packages"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "pkghealth"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	backend    string
	noCache    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "pkghealth scores npm packages and their dependency trees",
		Long:         `pkghealth resolves the transitive dependencies of an npm package and scores every package in the tree for maintenance, popularity, activity and security.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default ./"+config.DefaultFile+" if present)")
	pf.StringVar(&c.backend, "cache", "", "cache backend: file, memory, redis, mongo or none (default file)")
	pf.BoolVar(&c.noCache, "no-cache", false, "disable caching")

	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.healthCommand())
	root.AddCommand(c.searchCommand())
	root.AddCommand(c.infoCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// App Factory
// =============================================================================

// loadConfig reads the config file and environment and applies the cache
// flags on top. fallback is the backend used when neither the flags nor the
// configuration pick one.
func (c *CLI) loadConfig(fallback string) (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.backend != "" {
		cfg.Cache.Backend = c.backend
	}
	if c.noCache {
		cfg.Cache.Backend = config.BackendNone
	}
	if cfg.Cache.Backend == "" && cfg.Cache.RedisURL == "" {
		cfg.Cache.Backend = fallback
	}
	if cfg.Cache.Dir == "" {
		if dir, err := cacheDir(); err == nil {
			cfg.Cache.Dir = dir
		}
	}
	return cfg, cfg.Validate()
}

// newApp builds the application for one command invocation, caching to
// disk by default. Callers must Close it.
func (c *CLI) newApp(ctx context.Context) (*app.App, error) {
	cfg, err := c.loadConfig(config.BackendFile)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, loggerFromContext(ctx))
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/pkghealth/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Argument Helpers
// =============================================================================

// splitSpec splits "name@version" into its parts. The leading @ of a scoped
// name is not a separator. Without a version, latest is returned.
func splitSpec(spec string) (name, version string) {
	spec = strings.TrimSpace(spec)
	if i := strings.LastIndexByte(spec, '@'); i > 0 {
		if v := spec[i+1:]; v != "" {
			return spec[:i], v
		}
		return spec[:i], packages.DefaultVersion
	}
	return spec, packages.DefaultVersion
}
