package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

func TestNewLLMService(t *testing.T) {
	_, err := NewLLMService(context.Background(), LLMConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	svc, err := NewLLMService(context.Background(), LLMConfig{APIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, DefaultLLMModel, svc.ModelName())
}

// TestToContents tests role mapping and system extraction
func TestToContents(t *testing.T) {
	contents, system := toContents([]driven.ChatMessage{
		{Role: driven.RoleSystem, Content: "rules"},
		{Role: driven.RoleUser, Content: "q1"},
		{Role: driven.RoleAssistant, Content: "a1"},
		{Role: driven.RoleUser, Content: "q2"},
	})

	assert.Equal(t, "rules", system)
	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, "q2", contents[2].Parts[0].Text)
}

// TestComplete tests a generateContent round trip
func TestComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"forty "},{"text":"two"}]}}]}`))
	}))
	defer server.Close()

	svc, err := NewLLMService(context.Background(), LLMConfig{APIKey: "key", BaseURL: server.URL})
	require.NoError(t, err)

	answer, err := svc.Complete(context.Background(), driven.CompletionRequest{SystemPrompt: "s", UserPrompt: "u"})
	require.NoError(t, err)
	assert.Equal(t, "forty two", answer)
}
