package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrAlreadyProcessing", ErrAlreadyProcessing},
		{"ErrAlreadyEmbedded", ErrAlreadyEmbedded},
		{"ErrNoCandidates", ErrNoCandidates},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrProvider", ErrProvider},
		{"ErrStore", ErrStore},
		{"ErrRateLimited", ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestValidationError tests message formatting and sentinel matching
func TestValidationError(t *testing.T) {
	err := NewValidationError("topK", "must be >= 0, got %d", -1)
	assert.Equal(t, "invalid topK: must be >= 0, got -1", err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)

	bare := &ValidationError{Message: "empty"}
	assert.Equal(t, "invalid input: empty", bare.Error())

	wrapped := fmt.Errorf("handler: %w", err)
	var ve *ValidationError
	require.ErrorAs(t, wrapped, &ve)
	assert.Equal(t, "topK", ve.Field)
}

// TestProviderError tests classification of provider failures
func TestProviderError(t *testing.T) {
	t.Run("message with status", func(t *testing.T) {
		err := &ProviderError{Provider: "openai", Status: 401, Message: "bad key"}
		assert.Equal(t, "openai provider error (status 401): bad key", err.Error())
		assert.ErrorIs(t, err, ErrProvider)
		assert.NotErrorIs(t, err, ErrRateLimited)
		assert.False(t, err.Temporary())
	})

	t.Run("rate limited", func(t *testing.T) {
		err := &ProviderError{Provider: "openai", Status: 429}
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.True(t, err.Temporary())
	})

	t.Run("server error is temporary", func(t *testing.T) {
		assert.True(t, (&ProviderError{Status: 503}).Temporary())
	})

	t.Run("wraps cause", func(t *testing.T) {
		cause := errors.New("dial tcp: refused")
		err := &ProviderError{Provider: "ollama", Err: cause}
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "dial tcp")
	})
}

// TestStoreError tests store error wrapping
func TestStoreError(t *testing.T) {
	cause := errors.New("disk full")
	err := &StoreError{Op: "replace chunks", Err: cause}
	assert.Equal(t, "store replace chunks: disk full", err.Error())
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, cause)
}

// TestNoCandidatesError tests sentinel matching
func TestNoCandidatesError(t *testing.T) {
	err := &NoCandidatesError{DocumentIDs: []string{"a", "b"}}
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.Contains(t, err.Error(), "2 document(s)")
}

// TestEmbeddingError tests chunk index reporting
func TestEmbeddingError(t *testing.T) {
	cause := &ProviderError{Provider: "openai", Status: 500}
	err := &EmbeddingError{DocumentID: "doc", ChunkIndex: 2, Err: cause}
	assert.Contains(t, err.Error(), "chunk 2")
	assert.ErrorIs(t, err, ErrProvider)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 500, pe.Status)

	noChunk := &EmbeddingError{DocumentID: "doc", ChunkIndex: -1, Err: ErrStore}
	assert.NotContains(t, noChunk.Error(), "chunk")
}

// TestUserMessage tests that user-facing messages never leak provider text
func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"no candidates", &NoCandidatesError{}, MsgNoCandidates},
		{"provider", &ProviderError{Provider: "openai", Status: 500, Message: "secret payload"}, MsgTechnicalDifficulties},
		{"store", &StoreError{Op: "get", Err: errors.New("db locked")}, MsgTechnicalDifficulties},
		{"not found", fmt.Errorf("get: %w", ErrNotFound), "The requested document was not found."},
		{"cancelled", fmt.Errorf("embed: %w", context.Canceled), "The request was cancelled."},
		{"rate limited", &ProviderError{Status: 429, Message: "slow down"}, "The AI provider is rate limiting requests. Please try again shortly."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UserMessage(tt.err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "secret payload")
		})
	}

	t.Run("validation", func(t *testing.T) {
		got := UserMessage(NewValidationError("query", "is required"))
		assert.Equal(t, "Invalid request: invalid query: is required", got)
	})
}
