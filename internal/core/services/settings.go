package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDims       = "embedding.dimensions"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyStorageBackend  = "storage.backend"
	keyStoragePath     = "storage.path"
	keyStorageDSN      = "storage.dsn"
	keyChunkSize       = "pipeline.chunk_size"
	keyOverlap         = "pipeline.overlap"
	keyChunkDelay      = "pipeline.chunk_delay"
	keyDocumentDelay   = "pipeline.document_delay"
	keyConcurrency     = "pipeline.concurrency"
	keyRequestsPerSec  = "pipeline.requests_per_second"
	keyTopK            = "rag.top_k"
	keyTemperature     = "rag.temperature"
	keyMaxTokens       = "rag.max_tokens"
	keySimilarityFloor = "rag.similarity_threshold"
)

const defaultOllamaURL = "http://localhost:11434"

type configValue struct {
	key   string
	value any
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService creates a new settings service.
// API keys missing from the config are read from the provider's
// conventional environment variable.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   os.LookupEnv,
	}
}

// SetEnvLookup replaces the environment lookup used for API key fallback.
func (s *SettingsService) SetEnvLookup(lookup func(string) (string, bool)) {
	s.lookupEnv = lookup
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:      s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			Dimensions: s.getInt(keyEmbedDims, defaults.Embedding.Dimensions),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Storage: domain.StorageSettings{
			Backend: s.getBackend(defaults.Storage.Backend),
			Path:    s.configStore.GetString(keyStoragePath),
			DSN:     s.configStore.GetString(keyStorageDSN),
		},
		Pipeline: s.getPipeline(defaults.Pipeline),
		RAG: domain.RAGSettings{
			TopK:                s.getInt(keyTopK, defaults.RAG.TopK),
			Temperature:         s.getFloat(keyTemperature, defaults.RAG.Temperature),
			MaxTokens:           s.getInt(keyMaxTokens, defaults.RAG.MaxTokens),
			SimilarityThreshold: s.getFloat(keySimilarityFloor, defaults.RAG.SimilarityThreshold),
		},
	}

	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = s.envKey(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.envKey(settings.LLM.Provider)
	}

	return settings, nil
}

// Save persists application settings.
// API keys are only written when set and not taken from the environment.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []configValue{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyStorageBackend, settings.Storage.Backend.String()},
		{keyStoragePath, settings.Storage.Path},
		{keyStorageDSN, settings.Storage.DSN},
		{keyChunkSize, settings.Pipeline.ChunkSize},
		{keyOverlap, settings.Pipeline.Overlap},
		{keyChunkDelay, settings.Pipeline.ChunkDelay.String()},
		{keyDocumentDelay, settings.Pipeline.DocumentDelay.String()},
		{keyConcurrency, settings.Pipeline.Concurrency},
		{keyRequestsPerSec, settings.Pipeline.RequestsPerSecond},
		{keyTopK, settings.RAG.TopK},
		{keyTemperature, settings.RAG.Temperature},
		{keyMaxTokens, settings.RAG.MaxTokens},
		{keySimilarityFloor, settings.RAG.SimilarityThreshold},
	}
	if key := settings.Embedding.APIKey; key != "" && key != s.envKey(settings.Embedding.Provider) {
		values = append(values, configValue{keyEmbedAPIKey, settings.Embedding.APIKey})
	}
	if key := settings.LLM.APIKey; key != "" && key != s.envKey(settings.LLM.Provider) {
		values = append(values, configValue{keyLLMAPIKey, settings.LLM.APIKey})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return domain.NewValidationError("provider", "unknown embedding provider %q", provider)
	}
	if !provider.SupportsEmbeddings() {
		return domain.NewValidationError("provider", "%s does not support embeddings", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if apiKey == "" {
		apiKey = s.envKey(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return domain.NewValidationError("apiKey", "required for %s (or set %s)", provider, provider.APIKeyEnv())
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = modelOrDefault(model, domain.DefaultEmbeddingModels()[provider])
	settings.Embedding.BaseURL = baseURLFor(provider, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = apiKey

	// A new model invalidates an explicit dimension override.
	settings.Embedding.Dimensions = domain.EmbeddingDimensions()[settings.Embedding.Model]

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return domain.NewValidationError("provider", "unknown LLM provider %q", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	if apiKey == "" {
		apiKey = s.envKey(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return domain.NewValidationError("apiKey", "required for %s (or set %s)", provider, provider.APIKeyEnv())
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = modelOrDefault(model, domain.DefaultLLMModels()[provider])
	settings.LLM.BaseURL = baseURLFor(provider, settings.LLM.BaseURL)
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetStorage configures the document store.
func (s *SettingsService) SetStorage(backend domain.StorageBackend, path, dsn string) error {
	if !backend.IsValid() {
		return domain.NewValidationError("backend", "unknown storage backend %q", backend)
	}
	if backend == domain.StoragePostgres && dsn == "" {
		return domain.NewValidationError("dsn", "required for postgres")
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Storage = domain.StorageSettings{Backend: backend, Path: path, DSN: dsn}
	return s.Save(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig(ctx context.Context) error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(ctx, &settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig(ctx context.Context) error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(ctx, &settings.LLM)
}

func modelOrDefault(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}

// baseURLFor keeps a custom endpoint for local providers and clears it for cloud ones.
func baseURLFor(provider domain.AIProvider, current string) string {
	if !provider.IsLocal() {
		return ""
	}
	if current == "" {
		return defaultOllamaURL
	}
	return current
}

func (s *SettingsService) envKey(provider domain.AIProvider) string {
	name := provider.APIKeyEnv()
	if name == "" || s.lookupEnv == nil {
		return ""
	}
	v, _ := s.lookupEnv(name)
	return v
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	backend := domain.StorageBackend(s.configStore.GetString(keyStorageBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

// getPipeline reads pipeline settings. A chunk size outside
// [MinChunkSize, MaxChunkSize] or an overlap that does not fit it
// falls back to the defaults.
func (s *SettingsService) getPipeline(defaults domain.PipelineSettings) domain.PipelineSettings {
	p := domain.PipelineSettings{
		ChunkSize:         s.getInt(keyChunkSize, defaults.ChunkSize),
		Overlap:           defaults.Overlap,
		ChunkDelay:        s.getDuration(keyChunkDelay, defaults.ChunkDelay),
		DocumentDelay:     s.getDuration(keyDocumentDelay, defaults.DocumentDelay),
		Concurrency:       s.getInt(keyConcurrency, defaults.Concurrency),
		RequestsPerSecond: s.getFloat(keyRequestsPerSec, defaults.RequestsPerSecond),
	}
	if _, exists := s.configStore.Get(keyOverlap); exists {
		p.Overlap = s.configStore.GetInt(keyOverlap)
	}

	if p.ChunkSize < domain.MinChunkSize || p.ChunkSize > domain.MaxChunkSize {
		p.ChunkSize = defaults.ChunkSize
	}
	if p.Overlap < 0 || p.Overlap >= p.ChunkSize {
		p.Overlap = defaults.Overlap
	}
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	if p.RequestsPerSecond < 0 {
		p.RequestsPerSecond = 0
	}
	return p
}
