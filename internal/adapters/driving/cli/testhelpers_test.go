package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/adapters/driven/fetch"
	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/services"
	"github.com/custodia-labs/ragline/internal/extractors"
)

// wordEmbedder embeds text as counts of a fixed vocabulary.
type wordEmbedder struct {
	err error
}

var vocabulary = []string{"go", "gopher", "rust", "crab", "tea", "coffee"}

func (e *wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vec := make([]float32, len(vocabulary)+1)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		for i, v := range vocabulary {
			if strings.Trim(w, ".,?!") == v {
				vec[i]++
			}
		}
	}
	vec[len(vocabulary)] = 0.1
	return vec, nil
}

func (e *wordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *wordEmbedder) Dimensions() int              { return len(vocabulary) + 1 }
func (e *wordEmbedder) ModelName() string            { return "words" }
func (e *wordEmbedder) Ping(_ context.Context) error { return nil }
func (e *wordEmbedder) Close() error                 { return nil }

// cannedLLM always gives the same answer.
type cannedLLM struct {
	answer string
	err    error
}

func (l *cannedLLM) Complete(_ context.Context, _ driven.CompletionRequest) (string, error) {
	return l.answer, l.err
}

func (l *cannedLLM) Chat(_ context.Context, _ []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	return "", errors.New("not used")
}

func (l *cannedLLM) ModelName() string            { return "canned" }
func (l *cannedLLM) Ping(_ context.Context) error { return nil }
func (l *cannedLLM) Close() error                 { return nil }

// mockSettingsService keeps settings in memory.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding.Provider = provider
	m.settings.Embedding.Model = model
	m.settings.Embedding.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.LLM.Provider = provider
	m.settings.LLM.Model = model
	m.settings.LLM.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) SetStorage(backend domain.StorageBackend, path, dsn string) error {
	m.settings.Storage = domain.StorageSettings{Backend: backend, Path: path, DSN: dsn}
	return nil
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) ValidateEmbeddingConfig(_ context.Context) error { return m.validateErr }
func (m *mockSettingsService) ValidateLLMConfig(_ context.Context) error       { return m.validateErr }

type testEnv struct {
	store    *memory.DocumentStore
	embedder *wordEmbedder
	llm      *cannedLLM
	settings *mockSettingsService
}

// setupTestServices installs services over an in-memory store and
// returns a cleanup that restores the previous ones.
func setupTestServices() (*testEnv, func()) {
	env := &testEnv{
		store:    memory.NewDocumentStore(),
		embedder: &wordEmbedder{},
		llm:      &cannedLLM{answer: "Gophers drink tea."},
		settings: &mockSettingsService{settings: domain.DefaultAppSettings()},
	}

	pipelineSettings := domain.DefaultPipelineSettings()
	pipelineSettings.ChunkDelay = 0
	pipelineSettings.DocumentDelay = 0

	old := Services{
		Documents:   documentService,
		Embedding:   embeddingPipeline,
		Query:       queryService,
		Settings:    settingsService,
		Hub:         statusHub,
		Fetcher:     fetcher,
		Unavailable: unavailable,
	}
	SetServices(Services{
		Documents: services.NewDocumentService(env.store, extractors.NewDefaultRegistry()),
		Embedding: services.NewEmbeddingPipeline(env.store, env.embedder, pipelineSettings),
		Query:     services.NewQueryService(env.store, env.embedder, env.llm, domain.DefaultRAGSettings()),
		Settings:  env.settings,
		Fetcher:   fetch.New(),
	})
	return env, func() { SetServices(old) }
}

// resetFlags restores every flag variable to its default.
func resetFlags() {
	uploadEmbed, uploadChunkSize, uploadOverlap = false, 0, 0
	listStatuses, listJSON, showContent = nil, false, false
	embedChunkSize, embedOverlap, embedAllYes = 0, 0, false
	queryTopK, queryDocs, queryJSON = 0, nil, false
	statsJSON, reloadForce = false, false
	serveAddr, serveWatchDir = ":8080", ""
	watchEmbed, mcpPort = false, 0
}

// run executes the root command with args and returns its output.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// seed uploads a text document and returns its id.
func seed(t *testing.T, name, content string) string {
	t.Helper()
	doc, err := documentService.Upload(context.Background(), &domain.Upload{Name: name, Data: []byte(content)})
	require.NoError(t, err)
	return doc.ID
}
