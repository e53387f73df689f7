// Package cli provides the ragline command line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragline/internal/adapters/driven/fetch"
	"github.com/custodia-labs/ragline/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/logger"
)

var (
	version = "dev"

	documentService   driving.DocumentService
	embeddingPipeline driving.EmbeddingPipeline
	queryService      driving.QueryService
	settingsService   driving.SettingsService
	statusHub         *httpapi.Hub
	fetcher           *fetch.Fetcher

	// unavailable explains why the document services are nil, if they are.
	unavailable string

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ragline",
	Short: "Retrieval-augmented answers over your documents",
	Long: `ragline uploads documents, splits them into overlapping chunks, embeds
them with a configured provider and answers questions from the most similar
chunks using a chat model.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print pipeline progress")
}

// Services holds the core services the commands drive.
type Services struct {
	Documents driving.DocumentService
	Embedding driving.EmbeddingPipeline
	Query     driving.QueryService
	Settings  driving.SettingsService
	Hub       *httpapi.Hub
	Fetcher   *fetch.Fetcher

	// Unavailable explains missing document services, e.g. a store that
	// failed to open. Settings commands keep working.
	Unavailable string
}

// SetServices installs the services used by every command.
func SetServices(s Services) {
	documentService = s.Documents
	embeddingPipeline = s.Embedding
	queryService = s.Query
	settingsService = s.Settings
	statusHub = s.Hub
	fetcher = s.Fetcher
	unavailable = s.Unavailable
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
