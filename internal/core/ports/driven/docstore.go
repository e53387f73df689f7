package driven

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// DocumentStore persists documents and their embedded chunks.
// It is the single source of truth; services keep no caches.
//
// Failures other than domain.ErrNotFound and the claim sentinels
// are returned as *domain.StoreError.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocuments retrieves the documents that exist among ids.
	// Unknown ids are skipped. Order follows ids.
	GetDocuments(ctx context.Context, ids []string) ([]domain.Document, error)

	// ListDocuments returns documents in any of the given statuses,
	// or every document when none are given. Oldest first.
	ListDocuments(ctx context.Context, statuses ...domain.EmbeddingStatus) ([]domain.Document, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// DeleteAllDocuments removes every document and chunk.
	DeleteAllDocuments(ctx context.Context) error

	// ClaimForEmbedding atomically moves a document from pending or failed
	// to processing and returns it. A processing document yields
	// domain.ErrAlreadyProcessing and a completed one domain.ErrAlreadyEmbedded.
	ClaimForEmbedding(ctx context.Context, id string) (*domain.Document, error)

	// UpdateEmbeddingStatus sets the embedding status, chunk count and last error.
	UpdateEmbeddingStatus(ctx context.Context, id string, status domain.EmbeddingStatus, chunkCount int, lastErr string) error

	// ReplaceChunks atomically replaces every chunk of a document.
	// Either all chunks are visible afterwards or none of the new ones are.
	ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunksForDocuments retrieves chunks for every document in ids,
	// ordered by document (as in ids) then by index.
	GetChunksForDocuments(ctx context.Context, ids []string) ([]domain.Chunk, error)

	// DeleteAllChunks removes every chunk.
	DeleteAllChunks(ctx context.Context) error

	// ResetAllEmbeddings returns every document that is not processing to
	// pending with zero chunks and deletes those documents' chunks, as one
	// atomic step. Documents being embedded keep their status and chunks.
	ResetAllEmbeddings(ctx context.Context) error

	// Stats returns a diagnostic snapshot.
	Stats(ctx context.Context) (*domain.PipelineStats, error)

	// Close releases resources.
	Close() error
}
