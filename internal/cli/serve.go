package cli

import (
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pkghealth/internal/server"
	"github.com/matzehuels/pkghealth/pkg/app"
	"github.com/matzehuels/pkghealth/pkg/config"
	"github.com/matzehuels/pkghealth/pkg/observability"
)

// serveCommand creates the command that runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve exposes dependency resolution, health scores, package metadata and
search over HTTP, plus /healthz and Prometheus metrics on /metrics.

The cache defaults to memory, or Redis when REDIS_URL is set.`,
		Example: `  pkghealth serve --addr :3000
  REDIS_URL=redis://localhost:6379/0 pkghealth serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig(config.BackendMemory)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if lvl, err := log.ParseLevel(cfg.Log.Level); err == nil && lvl < c.Logger.GetLevel() {
				c.SetLogLevel(lvl)
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics := observability.NewMetrics(reg)
			observability.SetCacheHooks(metrics)
			observability.SetHTTPHooks(metrics)
			observability.SetResolveHooks(metrics)
			defer observability.Reset()

			a, err := app.New(ctx, cfg, c.Logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(a, c.Logger,
				server.WithGatherer(reg),
				server.WithRequestTimeout(cfg.Server.RequestTimeout),
			)
			printInfo(cmd.ErrOrStderr(), "Serving on %s (cache: %s)", cfg.Server.Addr, cfg.CacheBackend())
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8080, or :$PORT)")
	return cmd
}
