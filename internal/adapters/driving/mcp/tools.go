package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragline/internal/adapters/driving/request"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/logger"
)

// QueryInput is the input schema for the rag_query tool.
type QueryInput struct {
	Query       string   `json:"query" jsonschema:"the question to answer"`
	TopK        int      `json:"topK,omitempty" jsonschema:"number of chunks to use as context (default 5)"`
	DocumentIDs []string `json:"documentIds,omitempty" jsonschema:"documents to search (default: every embedded document)"`
}

// QueryOutput is the output schema for the rag_query tool.
type QueryOutput struct {
	Answer  string          `json:"answer"`
	Sources []domain.Source `json:"sources"`
	Query   string          `json:"query"`
	Error   string          `json:"error,omitempty"`
}

// EmbedDocumentInput is the input schema for the embed_document tool.
type EmbedDocumentInput struct {
	DocumentID string `json:"documentId" jsonschema:"the document to embed"`
	ChunkSize  int    `json:"chunkSize,omitempty" jsonschema:"chunk length in characters (default 512)"`
	Overlap    int    `json:"overlap,omitempty" jsonschema:"characters shared by neighbouring chunks (default 50)"`
}

// EmbedDocumentOutput is the output schema for the embed_document tool.
type EmbedDocumentOutput struct {
	Success bool   `json:"success"`
	Chunks  int    `json:"chunks"`
	Message string `json:"message"`
}

// EmbedPendingInput is the input schema for the embed_pending tool.
type EmbedPendingInput struct {
	ChunkSize   int  `json:"chunkSize,omitempty" jsonschema:"chunk length in characters (default 512)"`
	Overlap     int  `json:"overlap,omitempty" jsonschema:"characters shared by neighbouring chunks (default 50)"`
	RetryFailed bool `json:"retryFailed,omitempty" jsonschema:"embed failed documents instead of pending ones"`
}

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct {
	Status string `json:"status,omitempty" jsonschema:"only list documents in this embedding status (pending, processing, completed, failed)"`
}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// DocumentOutput summarises a document without its content.
type DocumentOutput struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	Size            int64  `json:"size"`
	EmbeddingStatus string `json:"embeddingStatus"`
	Chunks          int    `json:"chunks"`
	LastError       string `json:"lastError,omitempty"`
}

// StatsInput is the input schema for the pipeline_stats tool.
type StatsInput struct{}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "rag_query",
		Description: "Answer a question using the embedded content of uploaded documents",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List uploaded documents and their embedding status",
	}, s.handleListDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "pipeline_stats",
		Description: "Show document, chunk and embedding status counts",
	}, s.handleStats)

	if s.ports.Embedding == nil {
		return
	}

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "embed_document",
		Description: "Chunk and embed one uploaded document",
	}, s.handleEmbedDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "embed_pending",
		Description: "Embed every pending document, or retry every failed one",
	}, s.handleEmbedPending)
}

// handleQuery handles the rag_query tool invocation.
// Without document ids the query runs over every completed document.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	ids := input.DocumentIDs
	if len(ids) == 0 {
		docs, err := s.ports.Document.List(ctx, domain.EmbeddingCompleted)
		if err != nil {
			return nil, QueryOutput{}, toolError(err)
		}
		for i := range docs {
			ids = append(ids, docs[i].ID)
		}
		if len(ids) == 0 {
			return nil, QueryOutput{Answer: domain.MsgNoCandidates, Sources: []domain.Source{}, Query: input.Query}, nil
		}
	}

	body := request.Query{Query: input.Query, TopK: input.TopK, DocumentIDs: ids}
	if err := request.Validate(body); err != nil {
		return nil, QueryOutput{}, toolError(err)
	}

	result, err := s.ports.Query.Answer(ctx, body.ToDomain())
	output := QueryOutput{
		Answer:  result.Answer,
		Sources: result.Sources,
		Query:   result.Query,
	}
	if err != nil {
		output.Error = domain.UserMessage(err)
	}
	return nil, output, nil
}

// handleEmbedDocument handles the embed_document tool invocation.
func (s *Server) handleEmbedDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EmbedDocumentInput,
) (*mcp.CallToolResult, EmbedDocumentOutput, error) {
	body := request.EmbedDocument{DocumentID: input.DocumentID, ChunkSize: input.ChunkSize, Overlap: input.Overlap}
	if err := request.Validate(body); err != nil {
		return nil, EmbedDocumentOutput{}, toolError(err)
	}

	result, err := s.ports.Embedding.EmbedDocument(ctx, body.ToDomain())
	if err != nil {
		return nil, EmbedDocumentOutput{}, toolError(err)
	}
	return nil, EmbedDocumentOutput{
		Success: true,
		Chunks:  result.ChunkCount,
		Message: "Document embedded successfully",
	}, nil
}

// handleEmbedPending handles the embed_pending tool invocation.
func (s *Server) handleEmbedPending(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EmbedPendingInput,
) (*mcp.CallToolResult, domain.EmbedReport, error) {
	body := request.EmbedBatch{ChunkSize: input.ChunkSize, Overlap: input.Overlap}
	if err := request.Validate(body); err != nil {
		return nil, domain.EmbedReport{}, toolError(err)
	}

	run := s.ports.Embedding.EmbedAllPending
	if input.RetryFailed {
		run = s.ports.Embedding.RetryFailed
	}
	report, err := run(ctx, body.ChunkSize, body.Overlap)
	if err != nil {
		return nil, domain.EmbedReport{}, toolError(err)
	}
	if report.Outcomes == nil {
		report.Outcomes = []domain.EmbedOutcome{}
	}
	return nil, *report, nil
}

// handleListDocuments handles the list_documents tool invocation.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	var statuses []domain.EmbeddingStatus
	if input.Status != "" {
		statuses = append(statuses, domain.EmbeddingStatus(input.Status))
	}

	docs, err := s.ports.Document.List(ctx, statuses...)
	if err != nil {
		return nil, ListDocumentsOutput{}, toolError(err)
	}

	output := ListDocumentsOutput{
		Documents: make([]DocumentOutput, len(docs)),
		Count:     len(docs),
	}
	for i := range docs {
		output.Documents[i] = documentOutput(&docs[i])
	}
	return nil, output, nil
}

// handleStats handles the pipeline_stats tool invocation.
func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatsInput,
) (*mcp.CallToolResult, domain.PipelineStats, error) {
	stats, err := s.ports.Document.Stats(ctx)
	if err != nil {
		return nil, domain.PipelineStats{}, toolError(err)
	}
	return nil, *stats, nil
}

func documentOutput(doc *domain.Document) DocumentOutput {
	return DocumentOutput{
		ID:              doc.ID,
		Name:            doc.Name,
		Type:            doc.MediaType,
		Size:            doc.Size,
		EmbeddingStatus: doc.EmbeddingStatus.String(),
		Chunks:          doc.ChunkCount,
		LastError:       doc.LastError,
	}
}

// toolError logs the cause and returns the message clients may see.
func toolError(err error) error {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		logger.Get().Error().Err(err).Msg("mcp tool failed")
	}
	return errors.New(domain.UserMessage(err))
}
