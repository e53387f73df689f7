package driving

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// EmbeddingPipeline chunks and embeds documents.
type EmbeddingPipeline interface {
	// EmbedDocument embeds one document. Failures are *domain.EmbeddingError
	// or *domain.ValidationError.
	EmbedDocument(ctx context.Context, req domain.EmbedRequest) (*domain.EmbedResult, error)

	// EmbedAllPending embeds every pending document in turn.
	// One failure does not stop the others.
	EmbedAllPending(ctx context.Context, chunkSize, overlap int) (*domain.EmbedReport, error)

	// RetryFailed embeds every failed document in turn.
	RetryFailed(ctx context.Context, chunkSize, overlap int) (*domain.EmbedReport, error)

	// ReembedAll deletes every chunk, resets every document to pending
	// and embeds them again.
	ReembedAll(ctx context.Context, chunkSize, overlap int) (*domain.EmbedReport, error)
}
