package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragline/internal/adapters/driving/watch"
)

var (
	watchEmbed    bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest files dropped into a directory",
	Long: `Uploads files created or rewritten in a directory once they have been quiet
for the debounce interval. Removing a file deletes its document. With --embed
each upload is embedded straight away. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchEmbed, "embed", false, "embed each document after upload")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before a file is ingested")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}
	if fetcher == nil {
		return errors.New("file loader not configured")
	}

	info, err := os.Stat(args[0])
	if err != nil {
		return fmt.Errorf("watch %s: %w", args[0], err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", args[0])
	}

	opts := []watch.Option{watch.WithDebounce(watchDebounce)}
	if watchEmbed {
		if err := requireEmbedding(); err != nil {
			return err
		}
		opts = append(opts, watch.WithEmbedding(embeddingPipeline))
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
	return watch.New(args[0], documentService, fetcher, opts...).Run(cmd.Context())
}
