package mcp

import (
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query answers questions over documents.
	Query driving.QueryService

	// Document manages uploaded documents.
	Document driving.DocumentService

	// Embedding runs the embedding pipeline. The embed tools are only
	// registered when it is set.
	Embedding driving.EmbeddingPipeline
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Document == nil {
		return ErrMissingDocumentService
	}
	return nil
}
