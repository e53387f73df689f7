// Package mcp provides an MCP (Model Context Protocol) server adapter for ragline.
// It lets AI assistants ask questions over uploaded documents and drive the
// embedding pipeline.
package mcp

import "errors"

var (
	// ErrMissingQueryService is returned when the query service is not provided.
	ErrMissingQueryService = errors.New("mcp: query service is required")

	// ErrMissingDocumentService is returned when the document service is not provided.
	ErrMissingDocumentService = errors.New("mcp: document service is required")
)
