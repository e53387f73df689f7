// Package storetest provides a behavioural test suite shared by every
// driven.DocumentStore implementation.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) driven.DocumentStore

// Run exercises a DocumentStore implementation against the shared contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s driven.DocumentStore)
	}{
		{"SaveAndGet", testSaveAndGet},
		{"GetNotFound", testGetNotFound},
		{"SaveUpdates", testSaveUpdates},
		{"GetDocumentsSkipsUnknown", testGetDocumentsSkipsUnknown},
		{"ListOldestFirst", testListOldestFirst},
		{"ListFiltersByStatus", testListFiltersByStatus},
		{"ClaimTransitions", testClaimTransitions},
		{"ClaimIsExclusive", testClaimIsExclusive},
		{"UpdateEmbeddingStatus", testUpdateEmbeddingStatus},
		{"ReplaceChunks", testReplaceChunks},
		{"ReplaceChunksUnknownDocument", testReplaceChunksUnknownDocument},
		{"ChunksForDocuments", testChunksForDocuments},
		{"DeleteCascades", testDeleteCascades},
		{"ResetAndDeleteAll", testResetAndDeleteAll},
		{"ResetSkipsProcessing", testResetSkipsProcessing},
		{"Stats", testStats},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// NewDocument builds a pending document created offset seconds after a fixed base time.
func NewDocument(id, content string, offset int) *domain.Document {
	at := base.Add(time.Duration(offset) * time.Second)
	return &domain.Document{
		ID:              id,
		Name:            id + ".txt",
		Size:            int64(len(content)),
		MediaType:       "text/plain",
		Content:         content,
		Status:          domain.DocumentStatusUploaded,
		EmbeddingStatus: domain.EmbeddingPending,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

// NewChunks builds n embedded chunks for a document.
func NewChunks(documentID string, n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:         documentID + "-c" + string(rune('a'+i)),
			DocumentID: documentID,
			Index:      i,
			Content:    "chunk " + string(rune('a'+i)),
			Embedding:  []float32{float32(i), 0.5, -1.25},
		}
	}
	return chunks
}

func save(t *testing.T, s driven.DocumentStore, docs ...*domain.Document) {
	t.Helper()
	for _, d := range docs {
		require.NoError(t, s.SaveDocument(context.Background(), d))
	}
}

func ids(docs []domain.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func testSaveAndGet(t *testing.T, s driven.DocumentStore) {
	ctx := context.Background()
	doc := NewDocument("doc-1", "hello world", 0)
	save(t, s, doc)

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Name, got.Name)
	assert.Equal(t, doc.Size, got.Size)
	assert.Equal(t, doc.MediaType, got.MediaType)
	assert.Equal(t, doc.Content, got.Content)
	assert.Equal(t, domain.DocumentStatusUploaded, got.Status)
	assert.Equal(t, domain.EmbeddingPending, got.EmbeddingStatus)
	assert.True(t, doc.CreatedAt.Equal(got.CreatedAt), "created_at %v != %v", doc.CreatedAt, got.CreatedAt)
}

func testGetNotFound(t *testing.T, s driven.DocumentStore) {
	_, err := s.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testSaveUpdates(t *testing.T, s driven.DocumentStore) {
	ctx := context.Background()
	doc := NewDocument("doc-1", "v1", 0)
	save(t, s, doc)

	doc.Content = "v2"
	doc.Name = "renamed.txt"
	save(t, s, doc)

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
	assert.Equal(t, "renamed.txt", got.Name)

	all, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testGetDocumentsSkipsUnknown(t *testing.T, s driven.DocumentStore) {
	save(t, s, NewDocument("a", "x", 0), NewDocument("b", "y", 1))

	got, err := s.GetDocuments(context.Background(), []string{"b", "missing", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(got))

	none, err := s.GetDocuments(context.Background(), []string{"missing"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testListOldestFirst(t *testing.T, s driven.DocumentStore) {
	save(t, s, NewDocument("c", "x", 2), NewDocument("a", "x", 0), NewDocument("b", "x", 1))

	got, err := s.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
}

func testListFiltersByStatus(t *testing.T, s driven.DocumentStore) {
	ctx := context.Background()
	save(t, s, NewDocument("p", "x", 0), NewDocument("f", "x", 1), NewDocument("c", "x", 2))
	require.NoError(t, s.UpdateEmbeddingStatus(ctx, "f", domain.EmbeddingFailed, 0, "boom"))
	require.NoError(t, s.UpdateEmbeddingStatus(ctx, "c", domain.EmbeddingCompleted, 1, ""))

	pending, err := s.ListDocuments(ctx, domain.EmbeddingPending)
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, ids(pending))

	claimable, err := s.ListDocuments(ctx, domain.EmbeddingPending, domain.EmbeddingFailed)
	require.NoError(t, err)
	assert.Equal(t, []string{"p", "f"}, ids(claimable))
}

func testClaimTransitions(t *testing.T, s driven.DocumentStore) {
	ctx := context.Background()
	save(t, s, NewDocument("doc", "x", 0))

	claimed, err := s.ClaimForEmbedding(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingProcessing, claimed.EmbeddingStatus)
	assert.Equal(t, "x", claimed.Content)

	_, err = s.ClaimForEmbedding(ctx, "doc")
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessing)

	require.NoError(t, s.UpdateEmbeddingStatus(ctx, "doc", domain.EmbeddingFailed, 0, "boom"))
	_, err = s.ClaimForEmbedding(ctx, "doc")
	require.NoError(t, err, "failed documents are claimable")

	require.NoError(t, s.UpdateEmbeddingStatus(ctx, "doc", domain.EmbeddingCompleted, 3, ""))
	_, err = s.ClaimForEmbedding(ctx, "doc")
	assert.ErrorIs(t, err, domain.ErrAlreadyEmbedded)

	_, err = s.ClaimForEmbedding(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testClaimIsExclusive(t *testing.T, s driven.DocumentStore) {
	save(t, s, NewDocument("doc", "x", 0))

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		won      int
		refusals int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ClaimForEmbedding(context.Background(), "doc")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case assert.ErrorIs(t, err, domain.ErrAlreadyProcessing):
				refusals++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.Equal(t, workers-1, refusals)
}

func testUpdateEmbeddingStatus(t *testing.T, s driven.DocumentStore) {
	ctx := context.Background()
	save(t, s, NewDocument("doc", "x", 0))

	require.NoError(t, s.UpdateEmbeddingStatus(ctx, "doc", domain.EmbeddingFailed, 0, "provider down"))
	got, err := s.GetDocument(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingFailed, got.EmbeddingStatus)
	assert.Equal(t, "provider down", got.LastError)

	require.NoError(t, s.UpdateEmbeddingStatus(ctx, "doc", domain.EmbeddingCompleted, 4, ""))
	got, err = s.GetDocument(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingCompleted, got.EmbeddingStatus)
	assert.Equal(t, 4, got.ChunkCount)
	assert.Empty(t, got.LastError)

	err = s.UpdateEmbeddingStatus(ctx, "missing", domain.EmbeddingFailed, 0, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testReplaceChunks(t *testing.T, s driven.DocumentStore) {
	ctx := context.Background()
	save(t, s, NewDocument("doc", "x", 0))

	first := NewChunks("doc", 3)
	// Reverse input order; reads come back ordered by index.
	require.NoError(t, s.ReplaceChunks(ctx, "doc", []domain.Chunk{first[2], first[0], first[1]}))

	got, err := s.GetChunks(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, c := range got {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "doc", c.DocumentID)
		assert.Equal(t, first[i].Content, c.Content)
		assert.Equal(t, first[i].Embedding, c.Embedding)
	}

	second := NewChunks("doc", 1)
	second[0].ID = "replacement"
	require.NoError(t, s.ReplaceChunks(ctx, "doc", second))

	got, err = s.GetChunks(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "replacement", got[0].ID)

	require.NoError(t, s.ReplaceChunks(ctx, "doc", nil))
	got, err = s.GetChunks(ctx, "doc")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testReplaceChunksUnknownDocument(t *testing.T, s driven.DocumentStore) {
	ctx := context.Background()
	err := s.ReplaceChunks(ctx, "missing", NewChunks("missing", 2))
	require.Error(t, err)

	got, err := s.GetChunks(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testChunksForDocuments(t *testing.T, s driven.DocumentStore) {
	ctx := context.Background()
	save(t, s, NewDocument("a", "x", 0), NewDocument("b", "x", 1), NewDocument("c", "x", 2))
	require.NoError(t, s.ReplaceChunks(ctx, "a", NewChunks("a", 2)))
	require.NoError(t, s.ReplaceChunks(ctx, "b", NewChunks("b", 1)))
	require.NoError(t, s.ReplaceChunks(ctx, "c", NewChunks("c", 3)))

	got, err := s.GetChunksForDocuments(ctx, []string{"c", "a", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 5)

	var order []string
	for _, c := range got {
		order = append(order, c.ID)
	}
	assert.Equal(t, []string{"c-ca", "c-cb", "c-cc", "a-ca", "a-cb"}, order)

	empty, err := s.GetChunksForDocuments(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testDeleteCascades(t *testing.T, s driven.DocumentStore) {
	ctx := context.Background()
	save(t, s, NewDocument("a", "x", 0), NewDocument("b", "x", 1))
	require.NoError(t, s.ReplaceChunks(ctx, "a", NewChunks("a", 2)))
	require.NoError(t, s.ReplaceChunks(ctx, "b", NewChunks("b", 2)))

	require.NoError(t, s.DeleteDocument(ctx, "a"))

	_, err := s.GetDocument(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	chunks, err := s.GetChunks(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = s.GetChunks(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func testResetAndDeleteAll(t *testing.T, s driven.DocumentStore) {
	ctx := context.Background()
	save(t, s, NewDocument("a", "x", 0), NewDocument("b", "x", 1))
	require.NoError(t, s.ReplaceChunks(ctx, "a", NewChunks("a", 2)))
	require.NoError(t, s.UpdateEmbeddingStatus(ctx, "a", domain.EmbeddingCompleted, 2, ""))
	require.NoError(t, s.UpdateEmbeddingStatus(ctx, "b", domain.EmbeddingFailed, 0, "boom"))

	require.NoError(t, s.ResetAllEmbeddings(ctx))

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Equal(t, domain.EmbeddingPending, d.EmbeddingStatus, d.ID)
		assert.Zero(t, d.ChunkCount, d.ID)
		assert.Empty(t, d.LastError, d.ID)
	}
	chunks, err := s.GetChunks(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	require.NoError(t, s.ReplaceChunks(ctx, "b", NewChunks("b", 1)))
	require.NoError(t, s.DeleteAllChunks(ctx))
	chunks, err = s.GetChunks(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	require.NoError(t, s.DeleteAllDocuments(ctx))
	docs, err = s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testResetSkipsProcessing(t *testing.T, s driven.DocumentStore) {
	ctx := context.Background()
	save(t, s, NewDocument("busy", "x", 0), NewDocument("done", "x", 1))
	require.NoError(t, s.ReplaceChunks(ctx, "busy", NewChunks("busy", 2)))
	require.NoError(t, s.ReplaceChunks(ctx, "done", NewChunks("done", 2)))
	require.NoError(t, s.UpdateEmbeddingStatus(ctx, "done", domain.EmbeddingCompleted, 2, ""))
	_, err := s.ClaimForEmbedding(ctx, "busy")
	require.NoError(t, err)

	require.NoError(t, s.ResetAllEmbeddings(ctx))

	busy, err := s.GetDocument(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingProcessing, busy.EmbeddingStatus)
	chunks, err := s.GetChunks(ctx, "busy")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)

	_, err = s.ClaimForEmbedding(ctx, "busy")
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessing)

	done, err := s.GetDocument(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingPending, done.EmbeddingStatus)
	chunks, err = s.GetChunks(ctx, "done")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func testStats(t *testing.T, s driven.DocumentStore) {
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalDocuments)
	assert.Zero(t, empty.AverageChunkSize)

	save(t, s,
		NewDocument("a", "hello", 0),
		NewDocument("b", "héllo wörld", 1),
		NewDocument("c", "", 2),
	)
	require.NoError(t, s.ReplaceChunks(ctx, "a", NewChunks("a", 2)))
	require.NoError(t, s.UpdateEmbeddingStatus(ctx, "a", domain.EmbeddingCompleted, 2, ""))
	require.NoError(t, s.UpdateEmbeddingStatus(ctx, "b", domain.EmbeddingFailed, 0, "boom"))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDocuments)
	assert.Equal(t, int64(16), stats.TotalCharacters)
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 0, stats.Processing)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.InDelta(t, 7.0, stats.AverageChunkSize, 1e-9)
}
