package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/docindex/internal/storage"
)

func newStatusCmd(configPath *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what the index holds and how the last run went",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath, nil)
			if err != nil {
				return err
			}

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			status, err := store.GetStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}
			printStatus(cmd.OutOrStdout(), status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print status as JSON")

	return cmd
}

func printStatus(w io.Writer, status *storage.Status) {
	_, _ = fmt.Fprintf(w, "Backend:     %s (schema %s)\n", status.Backend, status.SchemaVersion)
	_, _ = fmt.Fprintf(w, "Documents:   %d (%d complete, %d pending)\n", status.DocumentsCount, status.CompleteCount, status.PendingCount)
	_, _ = fmt.Fprintf(w, "Sections:    %d\n", status.SectionsCount)
	_, _ = fmt.Fprintf(w, "Index size:  %.2f MB\n", status.IndexSizeMB)
	if !status.LastIndexedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "Last indexed: %s\n", status.LastIndexedAt.Format(time.RFC3339))
	}

	run := status.LastRun
	if run == nil {
		_, _ = fmt.Fprintln(w, "Last run:    none")
		return
	}
	_, _ = fmt.Fprintf(w, "Last run:    %s at %s (%s)\n", run.ID, run.StartedAt.Format(time.RFC3339), run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "             discovered %d, indexed %d, skipped %d, failed %d, cancelled %d\n",
		run.Discovered, run.Indexed, run.Skipped, run.Failed, run.Cancelled)
	_, _ = fmt.Fprintf(w, "             %d sections, %d tokens\n", run.SectionsStored, run.TokensUsed)
}
