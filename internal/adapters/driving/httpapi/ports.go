package httpapi

import (
	"errors"

	"github.com/custodia-labs/ragline/internal/core/ports/driving"
)

var (
	// ErrMissingQueryService is returned when the query service is not provided.
	ErrMissingQueryService = errors.New("httpapi: query service is required")

	// ErrMissingDocumentService is returned when the document service is not provided.
	ErrMissingDocumentService = errors.New("httpapi: document service is required")

	// ErrMissingEmbeddingPipeline is returned when the embedding pipeline is not provided.
	ErrMissingEmbeddingPipeline = errors.New("httpapi: embedding pipeline is required")
)

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	Query     driving.QueryService
	Document  driving.DocumentService
	Embedding driving.EmbeddingPipeline
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	switch {
	case p.Query == nil:
		return ErrMissingQueryService
	case p.Document == nil:
		return ErrMissingDocumentService
	case p.Embedding == nil:
		return ErrMissingEmbeddingPipeline
	}
	return nil
}
