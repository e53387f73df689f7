package driving

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// DocumentService manages uploaded documents.
type DocumentService interface {
	// Upload extracts the text of an upload and stores it as a pending document.
	Upload(ctx context.Context, upload *domain.Upload) (*domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// List returns documents in any of the given statuses, or all documents.
	List(ctx context.Context, statuses ...domain.EmbeddingStatus) ([]domain.Document, error)

	// Chunks returns the stored chunks of a document.
	Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// Delete removes a document and its chunks.
	Delete(ctx context.Context, documentID string) error

	// Reset removes a document's chunks and returns it to pending.
	Reset(ctx context.Context, documentID string) error

	// ForceReload deletes every chunk and then every document.
	ForceReload(ctx context.Context) error

	// Stats returns pipeline diagnostics.
	Stats(ctx context.Context) (*domain.PipelineStats, error)
}
