package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	statsJSON   bool
	reloadForce bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document, chunk and embedding counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Delete every document and chunk",
	Long:  `Deletes every chunk and then every document so the store can be repopulated from scratch.`,
	Args:  cobra.NoArgs,
	RunE:  runReload,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output stats as JSON")
	reloadCmd.Flags().BoolVar(&reloadForce, "force", false, "confirm deleting everything")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(reloadCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	stats, err := documentService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println("Pipeline Stats")
	cmd.Println("==============")
	cmd.Printf("  Documents:        %d\n", stats.TotalDocuments)
	cmd.Printf("  Characters:       %d\n", stats.TotalCharacters)
	cmd.Printf("  Chunks:           %d\n", stats.TotalChunks)
	cmd.Printf("  Avg chunk size:   %.1f\n", stats.AverageChunkSize)
	cmd.Println()
	cmd.Printf("  Pending:          %d\n", stats.Pending)
	cmd.Printf("  Processing:       %d\n", stats.Processing)
	cmd.Printf("  Completed:        %d\n", stats.Completed)
	cmd.Printf("  Failed:           %d\n", stats.Failed)
	return nil
}

func runReload(cmd *cobra.Command, _ []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}
	if !reloadForce {
		return errors.New("reload deletes every document; pass --force to confirm")
	}

	if err := documentService.ForceReload(cmd.Context()); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	cmd.Println("All documents and chunks deleted.")
	return nil
}
