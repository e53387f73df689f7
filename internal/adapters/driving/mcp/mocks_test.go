package mcp

import (
	"context"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	result *domain.QueryResult
	err    error
	last   domain.QueryRequest
}

func (m *mockQueryService) Answer(_ context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	m.last = req
	if m.result == nil {
		return &domain.QueryResult{Query: req.Query, Sources: []domain.Source{}}, m.err
	}
	return m.result, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	chunks    []domain.Chunk
	stats     *domain.PipelineStats
	err       error
	statuses  []domain.EmbeddingStatus
}

func (m *mockDocumentService) Upload(_ context.Context, _ *domain.Upload) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) List(_ context.Context, statuses ...domain.EmbeddingStatus) ([]domain.Document, error) {
	m.statuses = statuses
	return m.documents, m.err
}

func (m *mockDocumentService) Chunks(_ context.Context, _ string) ([]domain.Chunk, error) {
	return m.chunks, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockDocumentService) Reset(_ context.Context, _ string) error {
	return m.err
}

func (m *mockDocumentService) ForceReload(_ context.Context) error {
	return m.err
}

func (m *mockDocumentService) Stats(_ context.Context) (*domain.PipelineStats, error) {
	return m.stats, m.err
}

// mockEmbeddingPipeline is a mock implementation of driving.EmbeddingPipeline.
type mockEmbeddingPipeline struct {
	result  *domain.EmbedResult
	report  *domain.EmbedReport
	err     error
	last    domain.EmbedRequest
	retried bool
}

func (m *mockEmbeddingPipeline) EmbedDocument(_ context.Context, req domain.EmbedRequest) (*domain.EmbedResult, error) {
	m.last = req
	return m.result, m.err
}

func (m *mockEmbeddingPipeline) EmbedAllPending(_ context.Context, _, _ int) (*domain.EmbedReport, error) {
	return m.report, m.err
}

func (m *mockEmbeddingPipeline) RetryFailed(_ context.Context, _, _ int) (*domain.EmbedReport, error) {
	m.retried = true
	return m.report, m.err
}

func (m *mockEmbeddingPipeline) ReembedAll(_ context.Context, _, _ int) (*domain.EmbedReport, error) {
	return m.report, m.err
}
