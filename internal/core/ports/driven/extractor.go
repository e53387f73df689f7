package driven

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// TextExtractor turns an upload into plain text.
// Each extractor handles specific MIME types (e.g., Markdown, HTML).
type TextExtractor interface {
	// SupportedMIMETypes returns the MIME types this extractor handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific extractors should return 50-89.
	// Fallback extractors should return 1-9.
	Priority() int

	// Extract recovers the plain text of an upload.
	Extract(ctx context.Context, upload *domain.Upload) (*domain.Extracted, error)
}

// ExtractorRegistry selects the appropriate extractor for an upload.
type ExtractorRegistry interface {
	// Extract runs the best matching extractor.
	// Returns domain.ErrUnsupportedType when none matches.
	Extract(ctx context.Context, upload *domain.Upload) (*domain.Extracted, error)

	// Register adds an extractor to the registry.
	Register(extractor TextExtractor)

	// SupportedMIMETypes returns all MIME types that can be extracted.
	SupportedMIMETypes() []string
}
