package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

func TestNewEmbeddingService_RequiresAPIKey(t *testing.T) {
	_, err := NewEmbeddingService(context.Background(), Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc, err := NewEmbeddingService(context.Background(), Config{APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, DefaultDimensions, svc.Dimensions())
	assert.NoError(t, svc.Close())
}

func TestEmbedBatch_Empty(t *testing.T) {
	svc, err := NewEmbeddingService(context.Background(), Config{APIKey: "key"})
	require.NoError(t, err)

	vecs, err := svc.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestClientConfig(t *testing.T) {
	cfg := ClientConfig("key", "")
	assert.Equal(t, genai.BackendGeminiAPI, cfg.Backend)
	assert.Empty(t, cfg.HTTPOptions.BaseURL)

	custom := ClientConfig("key", "http://localhost:8080")
	assert.Equal(t, "http://localhost:8080", custom.HTTPOptions.BaseURL)
}

func TestClassify(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		err := Classify(genai.APIError{Code: 429, Message: "quota", Status: "RESOURCE_EXHAUSTED"})
		var pe *domain.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 429, pe.Status)
		assert.Equal(t, "quota", pe.Message)
		assert.ErrorIs(t, err, domain.ErrRateLimited)
	})

	t.Run("transport error", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Classify(cause)
		assert.ErrorIs(t, err, domain.ErrProvider)
		assert.ErrorIs(t, err, cause)
	})
}
