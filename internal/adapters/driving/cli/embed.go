package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

var (
	embedChunkSize int
	embedOverlap   int
	embedAllYes    bool
)

var embedCmd = &cobra.Command{
	Use:   "embed [doc-id]",
	Short: "Chunk and embed documents",
	Long: `Splits a document into overlapping chunks and embeds each chunk with the
configured embedding provider. A document must be pending or failed; reset a
completed document to embed it again.

Subcommands embed in bulk:
  pending  every pending document
  failed   every failed document
  all      delete every chunk and embed everything again`,
	Args: cobra.ExactArgs(1),
	RunE: runEmbed,
}

var embedPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Embed every pending document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireEmbedding(); err != nil {
			return err
		}
		report, err := embeddingPipeline.EmbedAllPending(cmd.Context(), embedChunkSize, embedOverlap)
		return printReport(cmd, report, err)
	},
}

var embedFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "Retry every failed document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireEmbedding(); err != nil {
			return err
		}
		report, err := embeddingPipeline.RetryFailed(cmd.Context(), embedChunkSize, embedOverlap)
		return printReport(cmd, report, err)
	},
}

var embedAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Delete every chunk and embed all documents again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := requireEmbedding(); err != nil {
			return err
		}
		if !embedAllYes {
			return errors.New("this deletes every stored chunk; pass --yes to confirm")
		}
		report, err := embeddingPipeline.ReembedAll(cmd.Context(), embedChunkSize, embedOverlap)
		return printReport(cmd, report, err)
	},
}

func init() {
	embedCmd.PersistentFlags().IntVar(&embedChunkSize, "chunk-size", 0, "chunk length in characters (default from settings)")
	embedCmd.PersistentFlags().IntVar(&embedOverlap, "overlap", 0, "characters shared by neighbouring chunks")
	embedAllCmd.Flags().BoolVar(&embedAllYes, "yes", false, "confirm deleting every chunk")

	embedCmd.AddCommand(embedPendingCmd)
	embedCmd.AddCommand(embedFailedCmd)
	embedCmd.AddCommand(embedAllCmd)
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	if err := requireEmbedding(); err != nil {
		return err
	}
	if !embedOne(cmd, args[0], embedChunkSize, embedOverlap) {
		return errors.New("embedding failed")
	}
	return nil
}

// embedOne embeds a document and prints the outcome.
func embedOne(cmd *cobra.Command, documentID string, chunkSize, overlap int) bool {
	result, err := embeddingPipeline.EmbedDocument(cmd.Context(), domain.EmbedRequest{
		DocumentID: documentID,
		ChunkSize:  chunkSize,
		Overlap:    overlap,
	})
	if err != nil {
		cmd.PrintErrf("    embedding failed: %s\n", domain.UserMessage(err))
		return false
	}
	cmd.Printf("    embedded %d chunks\n", result.ChunkCount)
	return true
}

func printReport(cmd *cobra.Command, report *domain.EmbedReport, err error) error {
	if report != nil {
		for _, o := range report.Outcomes {
			if o.Success {
				cmd.Printf("  ok    %s  %s (%d chunks)\n", o.DocumentID, o.DocumentName, o.ChunkCount)
			} else {
				cmd.Printf("  fail  %s  %s: %s\n", o.DocumentID, o.DocumentName, o.Error)
			}
		}
		if len(report.Outcomes) == 0 {
			cmd.Println("Nothing to embed.")
		} else {
			cmd.Printf("\n%d succeeded, %d failed\n", report.Succeeded, report.Failed)
		}
	}
	if err != nil {
		return errors.New(domain.UserMessage(err))
	}
	return nil
}
