package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/docindex/internal/config"
	"github.com/dshills/docindex/internal/mcp"
)

func newServeCmd(configPath *string) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index_documents and get_status tools over MCP stdio",
		Long: `Start an MCP server on stdin/stdout.

stdout carries the protocol, so all logging goes to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(*configPath, func(c *config.Config) {
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

			server := mcp.NewServer(a.store, a.indexer, mcp.Options{
				Root:      cfg.Discovery.Root,
				Discovery: a.discoveryOptions(),
			}, a.logger)

			errChan := make(chan error, 1)
			go func() {
				errChan <- server.Serve(ctx)
			}()

			select {
			case <-ctx.Done():
				a.logger.Info("shutting down")
				return nil
			case err := <-errChan:
				if err != nil {
					a.logger.Error("server error", zap.Error(err))
				}
				return err
			}
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}
