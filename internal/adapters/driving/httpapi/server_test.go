package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/services"
	"github.com/custodia-labs/ragline/internal/extractors"
)

// letterEmbedder embeds text as letter frequencies.
type letterEmbedder struct {
	err error
}

func (e *letterEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	vec := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	vec[0] += 0.01
	return vec, nil
}

func (e *letterEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

func (e *letterEmbedder) Dimensions() int { return 26 }
func (e *letterEmbedder) ModelName() string { return "letters" }
func (e *letterEmbedder) Ping(_ context.Context) error { return nil }
func (e *letterEmbedder) Close() error { return nil }

// echoLLM answers with the number of context blocks it received.
type echoLLM struct {
	err error
}

func (l *echoLLM) Complete(_ context.Context, req driven.CompletionRequest) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	return "answered from " + req.UserPrompt[:strings.Index(req.UserPrompt, "]")+1], nil
}

func (l *echoLLM) Chat(_ context.Context, _ []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	return "", errors.New("not used")
}

func (l *echoLLM) ModelName() string { return "echo" }
func (l *echoLLM) Ping(_ context.Context) error { return nil }
func (l *echoLLM) Close() error { return nil }

type fixture struct {
	store    *memory.DocumentStore
	embedder *letterEmbedder
	llm      *echoLLM
	hub      *Hub
	server   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.NewDocumentStore(),
		embedder: &letterEmbedder{},
		llm:      &echoLLM{},
		hub:      NewHub(),
	}

	settings := domain.DefaultPipelineSettings()
	settings.ChunkDelay = 0
	settings.DocumentDelay = 0

	pipeline := services.NewEmbeddingPipeline(f.store, f.embedder, settings)
	pipeline.SetStatusPublisher(f.hub)
	documents := services.NewDocumentService(f.store, extractors.NewDefaultRegistry())
	documents.SetStatusPublisher(f.hub)
	query := services.NewQueryService(f.store, f.embedder, f.llm, domain.DefaultRAGSettings())

	srv, err := NewServer(&Ports{Query: query, Document: documents, Embedding: pipeline}, f.hub, "")
	require.NoError(t, err)
	f.server = httptest.NewServer(srv.Handler())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) seed(t *testing.T, id, name, content string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, f.store.SaveDocument(context.Background(), &domain.Document{
		ID: id, Name: name, MediaType: "text/plain", Content: content, Size: int64(len(content)),
		Status: domain.DocumentStatusUploaded, EmbeddingStatus: domain.EmbeddingPending,
		CreatedAt: now, UpdatedAt: now,
	}))
}

func (f *fixture) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(&Ports{}, nil, "")
	assert.ErrorIs(t, err, ErrMissingQueryService)
}

func TestEmbedDocument(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "doc-1", "notes.txt", strings.Repeat("alpha beta gamma ", 80))

	resp, body := f.post(t, "/embed-document", map[string]any{"documentId": "doc-1", "chunkSize": 512, "overlap": 50})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(3), body["chunks"])
	assert.Equal(t, "Document embedded successfully", body["message"])
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	doc, err := f.store.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingCompleted, doc.EmbeddingStatus)

	t.Run("completed document conflicts", func(t *testing.T) {
		resp, body := f.post(t, "/embed-document", map[string]any{"documentId": "doc-1"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, false, body["success"])
	})

	t.Run("missing document id", func(t *testing.T) {
		resp, body := f.post(t, "/embed-document", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body["error"], "documentId")
	})

	t.Run("unknown document", func(t *testing.T) {
		resp, _ := f.post(t, "/embed-document", map[string]any{"documentId": "nope"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("bad chunk parameters", func(t *testing.T) {
		f.seed(t, "doc-2", "b.txt", "text")
		resp, _ := f.post(t, "/embed-document", map[string]any{"documentId": "doc-2", "chunkSize": 100, "overlap": 100})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestEmbedDocument_ProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "doc-1", "notes.txt", "some text")
	f.embedder.err = &domain.ProviderError{Provider: "openai", Status: 500, Message: "upstream said sk-secret"}

	resp, body := f.post(t, "/embed-document", map[string]any{"documentId": "doc-1"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.NotContains(t, body["error"], "sk-secret")

	doc, err := f.store.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingFailed, doc.EmbeddingStatus)
}

func TestEmbedPendingAndQuery(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a", "alpha.txt", "aaaa aaaa aaaa")
	f.seed(t, "b", "zulu.txt", "zzzz zzzz zzzz")

	resp, report := f.post(t, "/embed-pending", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), report["succeeded"])
	assert.Equal(t, float64(0), report["failed"])

	resp, result := f.post(t, "/rag-query", map[string]any{
		"query":       "aaaa",
		"topK":        1,
		"documentIds": []string{"a", "b"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "answered from Context from documents:\n[alpha.txt]", result["answer"])
	assert.Equal(t, "aaaa", result["query"])
	sources := result["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "alpha.txt", sources[0].(map[string]any)["document"])
}

func TestRAGQuery_Failures(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a", "alpha.txt", "aaaa")

	t.Run("no embedded chunks answers with explanation", func(t *testing.T) {
		resp, body := f.post(t, "/rag-query", map[string]any{"query": "q", "documentIds": []string{"a"}})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, domain.MsgNoCandidates, body["answer"])
		assert.Empty(t, body["sources"])
	})

	t.Run("validation", func(t *testing.T) {
		resp, body := f.post(t, "/rag-query", map[string]any{"query": "q"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body["error"], "documentIds")
	})

	t.Run("llm failure uses fallback answer", func(t *testing.T) {
		f.post(t, "/embed-document", map[string]any{"documentId": "a"})
		f.llm.err = &domain.ProviderError{Provider: "anthropic", Status: 503, Message: "overloaded"}

		resp, body := f.post(t, "/rag-query", map[string]any{"query": "q", "documentIds": []string{"a"}})
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, domain.MsgTechnicalDifficulties, body["answer"])
		assert.NotContains(t, body["error"], "overloaded")
	})
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/rag-query", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, allowedHeaders, resp.Header.Get("Access-Control-Allow-Headers"))
}

func TestDocumentsEndpoints(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "readme.md")
	require.NoError(t, err)
	_, err = part.Write([]byte("# Title\n\nHello **world**."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(f.server.URL+"/documents", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	var doc domain.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "readme.md", doc.Name)
	assert.Equal(t, domain.EmbeddingPending, doc.EmbeddingStatus)
	assert.Empty(t, doc.Content)

	resp, err = http.Get(f.server.URL + "/documents?status=pending")
	require.NoError(t, err)
	var docs []domain.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&docs))
	resp.Body.Close()
	require.Len(t, docs, 1)

	resp, err = http.Get(f.server.URL + "/documents?status=bogus")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(f.server.URL + "/documents/" + doc.ID)
	require.NoError(t, err)
	var full domain.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&full))
	resp.Body.Close()
	assert.Contains(t, full.Content, "Hello world.")

	f.post(t, "/embed-document", map[string]any{"documentId": doc.ID})

	resp, err = http.Get(f.server.URL + "/documents/" + doc.ID + "/chunks")
	require.NoError(t, err)
	var chunks []domain.Chunk
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chunks))
	resp.Body.Close()
	require.Len(t, chunks, 1)
	assert.Nil(t, chunks[0].Embedding)

	resp, err = http.Post(f.server.URL+"/documents/"+doc.ID+"/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, f.server.URL+"/documents/"+doc.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(f.server.URL + "/documents/" + doc.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatsAndAdmin(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a", "a.txt", "aaaa")
	f.seed(t, "b", "b.txt", "bbbb")

	resp, report := f.post(t, "/admin/reembed", map[string]any{"chunkSize": 256, "overlap": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), report["succeeded"])

	resp, err := http.Get(f.server.URL + "/stats")
	require.NoError(t, err)
	var stats domain.PipelineStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, 2, stats.TotalDocuments)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 2, stats.TotalChunks)

	resp, body := f.post(t, "/admin/reload", map[string]any{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	after, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, after.TotalDocuments)
}

func TestStatusWebsocket(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "a", "a.txt", "aaaa")

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	f.post(t, "/embed-document", map[string]any{"documentId": "a"})

	var got []domain.EmbeddingStatus
	for len(got) < 2 {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg statusMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "status", msg.Type)
		assert.Equal(t, "a", msg.Payload.DocumentID)
		got = append(got, msg.Payload.Status)
	}
	assert.Equal(t, []domain.EmbeddingStatus{domain.EmbeddingProcessing, domain.EmbeddingCompleted}, got)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := withMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("x", "bad"), http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrAlreadyProcessing, http.StatusConflict},
		{domain.ErrUnsupportedType, http.StatusUnsupportedMediaType},
		{&domain.ProviderError{Status: 429}, http.StatusTooManyRequests},
		{domain.ErrLLMUnavailable, http.StatusServiceUnavailable},
		{&domain.StoreError{Op: "save", Err: errors.New("disk")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
