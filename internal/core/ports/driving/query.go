package driving

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// QueryService answers questions from stored documents.
type QueryService interface {
	// Answer retrieves the best chunks and asks the chat provider.
	// The result is never nil; on failure it carries a caller-safe answer
	// and the classified error is returned alongside it.
	Answer(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error)
}
