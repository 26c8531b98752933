package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/docindex/internal/config"
	"github.com/dshills/docindex/internal/discovery"
	"github.com/dshills/docindex/internal/watcher"
)

func newWatchCmd(configPath *string) *cobra.Command {
	var (
		skipInitial bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Index a directory, then keep re-indexing documents as they change",
		Long: `Run a full indexing pass over root, then watch it for changes.

Created and modified documents are re-indexed after a quiet period
(watch.debounce); deleted or renamed documents are removed from the index.
Stop with Ctrl+C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(*configPath, func(c *config.Config) {
				if len(args) > 0 {
					c.Discovery.Root = args[0]
				}
				if metricsAddr != "" {
					c.Metrics.Addr = metricsAddr
				}
			})
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stopMetrics := startMetricsServer(cfg.Metrics.Addr, a.logger)
			defer stopMetrics()

			opts := a.discoveryOptions()

			w, err := watcher.New(cfg.Discovery.Root, a.indexer, watcher.Options{
				Debounce:  cfg.Watch.Debounce,
				Discovery: opts,
			}, a.logger)
			if err != nil {
				return err
			}

			if !skipInitial {
				stats, err := a.indexer.Run(ctx, discovery.Walk(ctx, cfg.Discovery.Root, opts))
				printStatistics(cmd, stats)
				if err != nil {
					a.logger.Warn("initial pass incomplete", zap.Error(err))
				}
			}

			return w.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Do not run a full pass before watching")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}
