package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// newOllamaServer starts a fake Ollama that answers the tags probe.
func newOllamaServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestInitResult_Close(t *testing.T) {
	t.Run("close with nil services", func(t *testing.T) {
		result := &InitResult{}
		// Should not panic
		result.Close()
	})
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantNil  bool
		wantErr  error
	}{
		{name: "nil settings returns nil", settings: nil, wantNil: true},
		{name: "unconfigured settings returns nil", settings: &domain.EmbeddingSettings{}, wantNil: true},
		{
			name: "ollama provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama,
				BaseURL:  "http://localhost:11434",
				Model:    "nomic-embed-text",
			},
		},
		{
			name: "openai provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI,
				APIKey:   "test-key",
				Model:    "text-embedding-3-small",
			},
		},
		{
			name: "gemini provider creates service",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderGemini,
				APIKey:   "test-key",
				Model:    "text-embedding-004",
			},
		},
		{
			name:     "openai without key returns nil",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI},
			wantNil:  true,
		},
		{
			name:     "anthropic provider returns error",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "test-key"},
			wantNil:  true,
			wantErr:  domain.ErrUnsupportedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(context.Background(), tt.settings)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.settings.Model, svc.ModelName())
			assert.NoError(t, svc.Close())
		})
	}
}

// TestCreateEmbeddingService_Dimensions tests explicit and model-derived vector sizes
func TestCreateEmbeddingService_Dimensions(t *testing.T) {
	svc, err := CreateEmbeddingService(context.Background(), &domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		Model:    "nomic-embed-text",
	})
	require.NoError(t, err)
	assert.Equal(t, 768, svc.Dimensions())

	svc, err = CreateEmbeddingService(context.Background(), &domain.EmbeddingSettings{
		Provider:   domain.AIProviderOpenAI,
		APIKey:     "k",
		Model:      "text-embedding-3-large",
		Dimensions: 256,
	})
	require.NoError(t, err)
	assert.Equal(t, 256, svc.Dimensions())
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.LLMSettings
		wantNil  bool
	}{
		{name: "nil settings returns nil", settings: nil, wantNil: true},
		{name: "unconfigured settings returns nil", settings: &domain.LLMSettings{}, wantNil: true},
		{
			name:     "ollama provider creates service",
			settings: &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"},
		},
		{
			name:     "openai provider creates service",
			settings: &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "gpt-4o-mini"},
		},
		{
			name:     "anthropic provider creates service",
			settings: &domain.LLMSettings{Provider: domain.AIProviderAnthropic, APIKey: "k", Model: "claude-3-5-haiku-latest"},
		},
		{
			name:     "gemini provider creates service",
			settings: &domain.LLMSettings{Provider: domain.AIProviderGemini, APIKey: "k", Model: "gemini-2.0-flash"},
		},
		{
			// unknown provider is not valid, so IsConfigured() returns false
			name:     "unknown provider returns nil",
			settings: &domain.LLMSettings{Provider: "unknown", APIKey: "k"},
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(context.Background(), tt.settings)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.settings.Model, svc.ModelName())
			assert.NoError(t, svc.Close())
		})
	}
}

// TestCreateAndValidate_Reachable tests that a reachable provider passes validation
func TestCreateAndValidate_Reachable(t *testing.T) {
	server := newOllamaServer(t)

	embed, err := CreateAndValidateEmbeddingService(context.Background(), &domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  server.URL,
	})
	require.NoError(t, err)
	require.NotNil(t, embed)
	embed.Close()

	llm, err := CreateAndValidateLLMService(context.Background(), &domain.LLMSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  server.URL,
	})
	require.NoError(t, err)
	require.NotNil(t, llm)
	llm.Close()
}

// TestCreateAndValidate_Unreachable tests that ping failures are wrapped with the unavailable sentinel
func TestCreateAndValidate_Unreachable(t *testing.T) {
	server := newOllamaServer(t)
	url := server.URL
	server.Close()

	_, err := CreateAndValidateEmbeddingService(context.Background(), &domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  url,
	})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, domain.ErrProvider)

	_, err = CreateAndValidateLLMService(context.Background(), &domain.LLMSettings{
		Provider: domain.AIProviderOllama,
		BaseURL:  url,
	})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

// TestInitialise tests that failures become warnings instead of errors
func TestInitialise(t *testing.T) {
	server := newOllamaServer(t)

	settings := domain.DefaultAppSettings()
	settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: server.URL}
	settings.LLM = domain.LLMSettings{Provider: domain.AIProviderAnthropic}

	result := Initialise(context.Background(), &settings)
	defer result.Close()

	assert.NotNil(t, result.EmbeddingService)
	assert.Nil(t, result.LLMService)
	assert.Empty(t, result.Warnings)

	settings.Embedding.Provider = domain.AIProviderAnthropic
	settings.Embedding.APIKey = "k"
	result = Initialise(context.Background(), &settings)
	assert.Nil(t, result.EmbeddingService)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "does not support embeddings")
}
