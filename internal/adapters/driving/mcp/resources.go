package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

const (
	documentsURI = "ragline://documents"
	mimeJSON     = "application/json"
	mimeText     = "text/plain"
)

// ChunkOutput is one stored chunk, without its vector.
type ChunkOutput struct {
	Index      int    `json:"index"`
	Content    string `json:"content"`
	Dimensions int    `json:"dimensions"`
}

func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         documentsURI,
		Name:        "documents",
		Description: "Every uploaded document with its embedding status",
		MIMEType:    mimeJSON,
	}, s.handleDocumentsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: documentsURI + "/{documentId}",
		Name:        "document-content",
		Description: "Extracted text of a document",
		MIMEType:    mimeText,
	}, s.handleDocumentContentResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: documentsURI + "/{documentId}/chunks",
		Name:        "document-chunks",
		Description: "Chunks a document was split into for retrieval",
		MIMEType:    mimeJSON,
	}, s.handleDocumentChunksResource)
}

func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docs, err := s.ports.Document.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	out := make([]DocumentOutput, len(docs))
	for i := range docs {
		out[i] = documentOutput(&docs[i])
	}
	return jsonResource(req.Params.URI, out)
}

func (s *Server) handleDocumentContentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id, sub := parseDocumentURI(req.Params.URI)
	if id == "" || sub != "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	doc, err := s.ports.Document.Get(ctx, id)
	if err != nil {
		return nil, resourceError(req.Params.URI, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: req.Params.URI, MIMEType: mimeText, Text: doc.Content}},
	}, nil
}

func (s *Server) handleDocumentChunksResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id, sub := parseDocumentURI(req.Params.URI)
	if id == "" || sub != "chunks" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	chunks, err := s.ports.Document.Chunks(ctx, id)
	if err != nil {
		return nil, resourceError(req.Params.URI, err)
	}
	out := make([]ChunkOutput, len(chunks))
	for i, c := range chunks {
		out[i] = ChunkOutput{Index: c.Index, Content: c.Content, Dimensions: len(c.Embedding)}
	}
	return jsonResource(req.Params.URI, out)
}

// parseDocumentURI splits ragline://documents/{id}[/{sub}]. It returns an
// empty id for anything else.
func parseDocumentURI(uri string) (id, sub string) {
	rest, ok := strings.CutPrefix(uri, documentsURI+"/")
	if !ok {
		return "", ""
	}
	id, sub, _ = strings.Cut(rest, "/")
	if strings.Contains(sub, "/") {
		return "", ""
	}
	return id, sub
}

func resourceError(uri string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return mcp.ResourceNotFoundError(uri)
	}
	return fmt.Errorf("reading %s: %w", uri, err)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: mimeJSON, Text: string(data)}},
	}, nil
}
