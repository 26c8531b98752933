// Package cmd provides the CLI commands for docindex.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/docindex/internal/storage"
)

// NewRootCmd creates the root command for the docindex CLI
func NewRootCmd(version, buildTime string) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "docindex",
		Short: "Crash-safe incremental indexing of markdown documents",
		Long: `docindex splits markdown documents into sections, embeds every section
and stores the vectors so an interrupted run never leaves a document looking
complete when it is not.

Unchanged documents are skipped on the next run; documents left behind by a
failure or interruption are picked up again automatically.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate(fmt.Sprintf(
		"docindex {{.Version}}\nBuild Time: %s\nBuild Mode: %s\nSQLite Driver: %s\n",
		buildTime, storage.BuildMode, storage.DriverName,
	))

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ./docindex.yaml if present)")

	cmd.AddCommand(newIndexCmd(&configPath))
	cmd.AddCommand(newStatusCmd(&configPath))
	cmd.AddCommand(newWatchCmd(&configPath))
	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newEmbedCmd(&configPath))

	return cmd
}

// Execute runs the root command
func Execute(version, buildTime string) error {
	return NewRootCmd(version, buildTime).Execute()
}
