// Command ragline uploads documents, embeds them and answers questions from
// the most similar chunks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/ragline/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragline/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ragline/internal/adapters/driven/fetch"
	"github.com/custodia-labs/ragline/internal/adapters/driven/storage"
	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragline/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragline/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/services"
	"github.com/custodia-labs/ragline/internal/extractors"
	"github.com/custodia-labs/ragline/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load() //nolint:errcheck // a missing .env file is normal

	configDir := os.Getenv("RAGLINE_CONFIG_DIR")

	var configStore driven.ConfigStore
	if fileStore, err := file.NewConfigStore(configDir); err != nil {
		logger.Warn("config file unavailable, settings will not be saved: %v", err)
		configStore = memory.NewConfigStore(file.EnvValues(os.LookupEnv))
	} else {
		fileStore.ApplyEnv(os.LookupEnv)
		configStore = fileStore
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	cli.SetVersion(version)

	settings, err := settingsService.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading settings: %v\n", err)
		return 1
	}

	svc := cli.Services{Settings: settingsService}

	store, err := storage.Open(ctx, settings.Storage)
	if err != nil {
		logger.Warn("document store unavailable: %v", err)
		svc.Unavailable = fmt.Sprintf("opening %s store: %v", settings.Storage.Backend, err)
	} else {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing store: %v", err)
			}
		}()

		aiServices := ai.Initialise(ctx, settings)
		defer aiServices.Close()
		for _, w := range aiServices.Warnings {
			logger.Warn("%s", w)
		}

		hub := httpapi.NewHub()

		pipeline := services.NewEmbeddingPipeline(store, aiServices.EmbeddingService, settings.Pipeline)
		pipeline.SetStatusPublisher(hub)

		documents := services.NewDocumentService(store, extractors.NewDefaultRegistry())
		documents.SetStatusPublisher(hub)

		query := services.NewQueryService(store, aiServices.EmbeddingService, aiServices.LLMService, settings.RAG)
		promptDir := ""
		if configDir != "" {
			promptDir = filepath.Join(configDir, "prompts")
		}
		if prompts, err := file.NewPromptStore(promptDir); err != nil {
			logger.Warn("using built-in prompts: %v", err)
		} else {
			query.SetPromptStore(prompts)
		}

		svc.Documents = documents
		svc.Embedding = pipeline
		svc.Query = query
		svc.Hub = hub
		svc.Fetcher = fetch.New()
	}

	cli.SetServices(svc)
	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}
