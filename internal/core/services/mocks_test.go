package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Vectors come from the vectors map, or a fixed function of the text.
type mockEmbeddingService struct {
	mu      sync.Mutex
	calls   int
	texts   []string
	vectors map[string][]float32
	failOn  map[string]error
	err     error
	onCall  func(n int)
	onText  func(text string)
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.texts = append(m.texts, text)
	m.mu.Unlock()

	if m.onCall != nil {
		m.onCall(n)
	}
	if m.onText != nil {
		m.onText(text)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.failOn[text]; ok {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return textVector(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int   { return 3 }
func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }

func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                { return nil }

func (m *mockEmbeddingService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// textVector derives a stable non-zero vector from text.
func textVector(text string) []float32 {
	var sum float32
	for _, r := range text {
		sum += float32(r % 97)
	}
	return []float32{float32(len(text)), sum, 1}
}

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	answer string
	err    error
	last   driven.CompletionRequest
	calls  int
}

func (m *mockLLMService) Complete(_ context.Context, req driven.CompletionRequest) (string, error) {
	m.calls++
	m.last = req
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func (m *mockLLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := driven.CompletionRequest{MaxTokens: opts.MaxTokens, Temperature: opts.Temperature}
	for _, msg := range messages {
		switch msg.Role {
		case driven.RoleSystem:
			req.SystemPrompt = msg.Content
		default:
			req.UserPrompt = msg.Content
		}
	}
	return m.Complete(ctx, req)
}

func (m *mockLLMService) ModelName() string           { return "mock-llm" }
func (m *mockLLMService) Ping(_ context.Context) error { return nil }
func (m *mockLLMService) Close() error                { return nil }

// recordingPublisher implements driven.StatusPublisher for testing.
type recordingPublisher struct {
	mu        sync.Mutex
	events    []domain.StatusEvent
	onPublish func(domain.StatusEvent)
}

func (r *recordingPublisher) Publish(event domain.StatusEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	if r.onPublish != nil {
		r.onPublish(event)
	}
}

func (r *recordingPublisher) statuses(documentID string) []domain.EmbeddingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.EmbeddingStatus
	for _, e := range r.events {
		if e.DocumentID == documentID {
			out = append(out, e.Status)
		}
	}
	return out
}

// failingStore wraps the memory store and fails selected operations.
type failingStore struct {
	*memory.DocumentStore
	replaceErr   error
	listErr      error
	chunksErr    error
	completedErr error
}

func (f *failingStore) UpdateEmbeddingStatus(
	ctx context.Context,
	id string,
	status domain.EmbeddingStatus,
	chunkCount int,
	lastErr string,
) error {
	if status == domain.EmbeddingCompleted && f.completedErr != nil {
		return f.completedErr
	}
	return f.DocumentStore.UpdateEmbeddingStatus(ctx, id, status, chunkCount, lastErr)
}

func (f *failingStore) ReplaceChunks(ctx context.Context, id string, chunks []domain.Chunk) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	return f.DocumentStore.ReplaceChunks(ctx, id, chunks)
}

func (f *failingStore) ListDocuments(ctx context.Context, statuses ...domain.EmbeddingStatus) ([]domain.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.DocumentStore.ListDocuments(ctx, statuses...)
}

func (f *failingStore) GetChunksForDocuments(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if f.chunksErr != nil {
		return nil, f.chunksErr
	}
	return f.DocumentStore.GetChunksForDocuments(ctx, ids)
}

// testPipelineSettings returns pipeline settings without delays.
func testPipelineSettings() domain.PipelineSettings {
	s := domain.DefaultPipelineSettings()
	s.ChunkDelay = 0
	s.DocumentDelay = 0
	return s
}

// saveDocument stores a pending document.
func saveDocument(store driven.DocumentStore, id, name, content string) *domain.Document {
	now := time.Now()
	doc := &domain.Document{
		ID:              id,
		Name:            name,
		Size:            int64(len(content)),
		MediaType:       "text/plain",
		Content:         content,
		Status:          domain.DocumentStatusUploaded,
		EmbeddingStatus: domain.EmbeddingPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	_ = store.SaveDocument(context.Background(), doc)
	return doc
}
