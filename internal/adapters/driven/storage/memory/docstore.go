package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk
	seq       map[string]int64
	next      int64
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
		seq:       make(map[string]int64),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seq[doc.ID]; !ok {
		s.next++
		s.seq[doc.ID] = s.next
	}
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocuments retrieves the documents that exist among ids.
func (s *DocumentStore) GetDocuments(_ context.Context, ids []string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool, len(ids))
	var result []domain.Document
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if doc, ok := s.documents[id]; ok {
			result = append(result, doc)
		}
	}
	return result, nil
}

// ListDocuments returns documents in the given statuses, oldest first.
func (s *DocumentStore) ListDocuments(_ context.Context, statuses ...domain.EmbeddingStatus) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[domain.EmbeddingStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	result := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		if len(want) == 0 || want[doc.EmbeddingStatus] {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return s.seq[result[i].ID] < s.seq[result[j].ID]
	})
	return result, nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.chunks, id)
	delete(s.seq, id)
	return nil
}

// DeleteAllDocuments removes every document and chunk.
func (s *DocumentStore) DeleteAllDocuments(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = make(map[string]domain.Document)
	s.chunks = make(map[string][]domain.Chunk)
	s.seq = make(map[string]int64)
	return nil
}

// ClaimForEmbedding moves a pending or failed document to processing.
func (s *DocumentStore) ClaimForEmbedding(_ context.Context, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	switch {
	case doc.EmbeddingStatus == domain.EmbeddingProcessing:
		return nil, domain.ErrAlreadyProcessing
	case doc.EmbeddingStatus == domain.EmbeddingCompleted:
		return nil, domain.ErrAlreadyEmbedded
	case !doc.EmbeddingStatus.IsClaimable():
		return nil, fmt.Errorf("claim %s: unexpected status %q: %w", id, doc.EmbeddingStatus, domain.ErrInvalidInput)
	}

	doc.EmbeddingStatus = domain.EmbeddingProcessing
	doc.UpdatedAt = time.Now()
	s.documents[id] = doc
	return &doc, nil
}

// UpdateEmbeddingStatus sets the embedding status, chunk count and last error.
func (s *DocumentStore) UpdateEmbeddingStatus(
	_ context.Context, id string, status domain.EmbeddingStatus, chunkCount int, lastErr string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.EmbeddingStatus = status
	doc.ChunkCount = chunkCount
	doc.LastError = lastErr
	doc.UpdatedAt = time.Now()
	s.documents[id] = doc
	return nil
}

// ReplaceChunks atomically replaces every chunk of a document.
func (s *DocumentStore) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return domain.ErrNotFound
	}
	for _, c := range chunks {
		if c.DocumentID != documentID {
			return &domain.StoreError{
				Op:  "replace chunks",
				Err: fmt.Errorf("chunk %s belongs to %s: %w", c.ID, c.DocumentID, domain.ErrInvalidInput),
			}
		}
	}

	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	sort.SliceStable(stored, func(i, j int) bool { return stored[i].Index < stored[j].Index })

	if len(stored) == 0 {
		delete(s.chunks, documentID)
	} else {
		s.chunks[documentID] = stored
	}
	return nil
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := s.chunks[documentID]
	out := make([]domain.Chunk, len(chunks))
	copy(out, chunks)
	return out, nil
}

// GetChunksForDocuments retrieves chunks for every document in ids.
func (s *DocumentStore) GetChunksForDocuments(_ context.Context, ids []string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool, len(ids))
	var out []domain.Chunk
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, s.chunks[id]...)
	}
	return out, nil
}

// DeleteAllChunks removes every chunk.
func (s *DocumentStore) DeleteAllChunks(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = make(map[string][]domain.Chunk)
	return nil
}

// ResetAllEmbeddings returns every document that is not processing to
// pending and drops its chunks.
func (s *DocumentStore) ResetAllEmbeddings(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, doc := range s.documents {
		if doc.EmbeddingStatus == domain.EmbeddingProcessing {
			continue
		}
		delete(s.chunks, id)
		doc.EmbeddingStatus = domain.EmbeddingPending
		doc.ChunkCount = 0
		doc.LastError = ""
		doc.UpdatedAt = now
		s.documents[id] = doc
	}
	return nil
}

// Stats returns a diagnostic snapshot.
func (s *DocumentStore) Stats(_ context.Context) (*domain.PipelineStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.PipelineStats{TotalDocuments: len(s.documents)}
	for _, doc := range s.documents {
		stats.TotalCharacters += int64(utf8.RuneCountInString(doc.Content))
		switch doc.EmbeddingStatus {
		case domain.EmbeddingPending:
			stats.Pending++
		case domain.EmbeddingProcessing:
			stats.Processing++
		case domain.EmbeddingCompleted:
			stats.Completed++
		case domain.EmbeddingFailed:
			stats.Failed++
		}
	}

	var chunkChars int
	for _, chunks := range s.chunks {
		stats.TotalChunks += len(chunks)
		for _, c := range chunks {
			chunkChars += utf8.RuneCountInString(c.Content)
		}
	}
	if stats.TotalChunks > 0 {
		stats.AverageChunkSize = float64(chunkChars) / float64(stats.TotalChunks)
	}
	return stats, nil
}

// Close releases resources (no-op for memory store).
func (s *DocumentStore) Close() error {
	return nil
}
