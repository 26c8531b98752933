package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/docindex/internal/config"
	"github.com/dshills/docindex/internal/discovery"
	"github.com/dshills/docindex/internal/indexer"
)

func newIndexCmd(configPath *string) *cobra.Command {
	var (
		force   bool
		workers int
	)

	cmd := &cobra.Command{
		Use:   "index [root]",
		Short: "Index the markdown documents under a directory",
		Long: `Index every .md and .mdx document under root (default: discovery.root).

Each document is split into sections at its headings, every section is
embedded, and the sections are stored together. Documents whose content is
unchanged since their last complete pass are skipped; use --force to
re-index them anyway.

A failing document does not stop the run. The command exits non-zero when
any document failed or the directory could not be walked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(*configPath, func(c *config.Config) {
				if len(args) > 0 {
					c.Discovery.Root = args[0]
				}
				if cmd.Flags().Changed("force") {
					c.Indexer.Force = force
				}
				if cmd.Flags().Changed("workers") {
					c.Indexer.Workers = workers
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

			stats, runErr := a.indexer.Run(ctx, discovery.Walk(ctx, cfg.Discovery.Root, a.discoveryOptions()))
			printStatistics(cmd, stats)
			if runErr != nil {
				return runErr
			}
			if ctx.Err() != nil {
				return fmt.Errorf("indexing interrupted: %w", ctx.Err())
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d of %d documents failed", stats.Failed, stats.Discovered)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-index documents even when unchanged")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent document passes (default indexer.workers)")

	return cmd
}

// printStatistics writes the run summary and per-document errors to stdout
func printStatistics(cmd *cobra.Command, stats *indexer.Statistics) {
	if stats == nil {
		return
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Run %s: %s\n", stats.RunID, stats.Summary())
	for _, msg := range stats.ErrorMessages {
		_, _ = fmt.Fprintf(out, "  error: %s\n", msg)
	}
}
