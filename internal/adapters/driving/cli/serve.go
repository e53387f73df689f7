package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/ragline/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/ragline/internal/adapters/driving/watch"
)

var (
	serveAddr     string
	serveWatchDir string
	serveDebounce time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the JSON API used by web front ends:

  POST /embed-document   embed one document
  POST /embed-pending    embed every pending document (?retry=failed for failed ones)
  POST /rag-query        answer a question
  GET  /documents        list documents, POST to upload
  GET  /ws/status        websocket stream of embedding status changes

With --watch, files dropped into the directory are uploaded and embedded.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveWatchDir, "watch", "", "directory to ingest files from")
	serveCmd.Flags().DurationVar(&serveDebounce, "debounce", watch.DefaultDebounce, "quiet period before a watched file is ingested")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}
	if err := requireEmbedding(); err != nil {
		return err
	}
	if queryService == nil {
		return notConfigured(errQueryNotConfigured)
	}

	server, err := httpapi.NewServer(&httpapi.Ports{
		Query:     queryService,
		Document:  documentService,
		Embedding: embeddingPipeline,
	}, statusHub, serveAddr)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return server.Run(ctx)
	})
	if serveWatchDir != "" {
		if fetcher == nil {
			return errors.New("file loader not configured")
		}
		w := watch.New(serveWatchDir, documentService, fetcher,
			watch.WithEmbedding(embeddingPipeline), watch.WithDebounce(serveDebounce))
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	cmd.Printf("HTTP API listening on %s\n", serveAddr)
	return g.Wait()
}
