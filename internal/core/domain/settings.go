package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is Google Gemini cloud API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// APIKeyEnv returns the conventional environment variable holding this
// provider's API key, or "" for providers without one.
func (p AIProvider) APIKeyEnv() string {
	switch p {
	case AIProviderOpenAI:
		return "OPENAI_API_KEY"
	case AIProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case AIProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// SupportsEmbeddings returns true if the provider offers an embeddings API.
func (p AIProvider) SupportsEmbeddings() bool {
	for _, e := range AllEmbeddingProviders() {
		if e == p {
			return true
		}
	}
	return false
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGemini:
		return "Google Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// Dimensions requests a vector size from providers that support it.
	// Zero uses the model's native size.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || !e.Provider.SupportsEmbeddings() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// StorageBackend identifies a DocumentStore implementation.
type StorageBackend string

// Available storage backends.
const (
	// StorageMemory keeps everything in process memory.
	StorageMemory StorageBackend = "memory"

	// StorageSQLite stores documents in a local SQLite file.
	StorageSQLite StorageBackend = "sqlite"

	// StoragePostgres stores documents in PostgreSQL with pgvector.
	StoragePostgres StorageBackend = "postgres"

	// StorageBadger stores documents in an embedded Badger database.
	StorageBadger StorageBackend = "badger"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageMemory, StorageSQLite, StoragePostgres, StorageBadger:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StorageBackend) String() string {
	return string(b)
}

// StorageSettings holds document store configuration.
type StorageSettings struct {
	// Backend selects the store implementation.
	Backend StorageBackend

	// Path is the data directory for file-backed stores.
	// Empty means the default data directory.
	Path string

	// DSN is the connection string for postgres.
	DSN string
}

// PipelineSettings holds embedding pipeline configuration.
type PipelineSettings struct {
	// ChunkSize is the default chunk length in characters.
	ChunkSize int

	// Overlap is the default number of characters shared by neighbouring chunks.
	Overlap int

	// ChunkDelay is the pause between consecutive provider calls.
	ChunkDelay time.Duration

	// DocumentDelay is the pause between documents in batch runs.
	DocumentDelay time.Duration

	// Concurrency is the number of provider calls in flight per document.
	// One keeps calls sequential.
	Concurrency int

	// RequestsPerSecond caps provider calls across all workers. Zero disables the limiter.
	RequestsPerSecond float64
}

// RAGSettings holds query orchestration configuration.
type RAGSettings struct {
	// TopK is the default number of chunks used as context.
	TopK int

	// Temperature controls randomness of the generated answer.
	Temperature float64

	// MaxTokens caps the generated answer length.
	MaxTokens int

	// SimilarityThreshold drops ranked chunks scoring below it.
	// Applied only when greater than zero.
	SimilarityThreshold float64
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds LLM provider settings.
	LLM LLMSettings

	// Storage holds document store settings.
	Storage StorageSettings

	// Pipeline holds embedding pipeline settings.
	Pipeline PipelineSettings

	// RAG holds query settings.
	RAG RAGSettings
}

// DefaultPipelineSettings returns the default embedding pipeline settings.
func DefaultPipelineSettings() PipelineSettings {
	return PipelineSettings{
		ChunkSize:     DefaultChunkSize,
		Overlap:       DefaultChunkOverlap,
		ChunkDelay:    100 * time.Millisecond,
		DocumentDelay: time.Second,
		Concurrency:   1,
	}
}

// DefaultRAGSettings returns the default query settings.
func DefaultRAGSettings() RAGSettings {
	return RAGSettings{
		TopK:        5,
		Temperature: 0.7,
		MaxTokens:   1000,
	}
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured by default.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{},
		LLM:       LLMSettings{},
		Storage: StorageSettings{
			Backend: StorageSQLite,
		},
		Pipeline: DefaultPipelineSettings(),
		RAG:      DefaultRAGSettings(),
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderGemini,
	}
}

// AllStorageBackends returns every storage backend.
func AllStorageBackends() []StorageBackend {
	return []StorageBackend{
		StorageMemory,
		StorageSQLite,
		StoragePostgres,
		StorageBadger,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderGemini:    "gemini-2.0-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004": 768,
	}
}
