package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/docindex/internal/embedder"
	"github.com/dshills/docindex/pkg/types"
)

// previewValues is how many vector components embed prints
const previewValues = 5

func newEmbedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "embed <text>",
		Short: "Embed a piece of text with the configured provider",
		Long: `Send text through the configured embedding provider, with the same
normalization, retries and rate limits the indexer uses, and print what came
back. Useful for checking credentials and model settings before a run.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, nil)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			text := strings.Join(args, " ")
			emb, err := a.emb.GenerateEmbedding(cmd.Context(), embedder.EmbeddingRequest{
				Text: embedder.NormalizeInput(text),
			})
			if err != nil {
				return err
			}

			tokens := emb.Usage.TotalTokens
			if tokens == 0 {
				tokens = types.EstimateTokens(text)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Provider:  %s\n", emb.Provider)
			_, _ = fmt.Fprintf(out, "Model:     %s\n", emb.Model)
			_, _ = fmt.Fprintf(out, "Dimension: %d\n", emb.Dimension)
			_, _ = fmt.Fprintf(out, "Tokens:    %d\n", tokens)
			_, _ = fmt.Fprintf(out, "Vector:    %v\n", preview(emb.Vector))
			return nil
		},
	}
}

func preview(vector []float32) string {
	if len(vector) <= previewValues {
		return fmt.Sprint(vector)
	}
	return strings.TrimSuffix(fmt.Sprint(vector[:previewValues]), "]") + " ...]"
}
