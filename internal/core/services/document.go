package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/core/ports/driving"
	"github.com/custodia-labs/ragline/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// untitled names uploads that carry neither a name nor a title.
const untitled = "untitled"

// DocumentService manages uploaded documents.
type DocumentService struct {
	store      driven.DocumentStore
	extractors driven.ExtractorRegistry
	publisher  driven.StatusPublisher
}

// NewDocumentService creates a new document service.
func NewDocumentService(store driven.DocumentStore, extractors driven.ExtractorRegistry) *DocumentService {
	return &DocumentService{
		store:      store,
		extractors: extractors,
	}
}

// SetStatusPublisher sets the receiver of status transitions.
func (s *DocumentService) SetStatusPublisher(publisher driven.StatusPublisher) {
	s.publisher = publisher
}

// Upload extracts the text of an upload and stores it as a pending document.
func (s *DocumentService) Upload(ctx context.Context, upload *domain.Upload) (*domain.Document, error) {
	if upload == nil || len(upload.Data) == 0 {
		return nil, domain.NewValidationError("file", "upload is empty")
	}
	if s.extractors == nil {
		return nil, fmt.Errorf("upload %q: no extractors configured: %w", upload.Name, domain.ErrUnsupportedType)
	}

	extracted, err := s.extractors.Extract(ctx, upload)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(upload.Name)
	if name == "" {
		name = strings.TrimSpace(extracted.Title)
	}
	if name == "" {
		name = untitled
	}

	now := time.Now()
	doc := &domain.Document{
		ID:              uuid.New().String(),
		Name:            name,
		Size:            int64(len(upload.Data)),
		MediaType:       extracted.MediaType,
		Content:         extracted.Text,
		Status:          domain.DocumentStatusUploaded,
		EmbeddingStatus: domain.EmbeddingPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	s.publish(doc.ID, domain.EmbeddingPending)

	logger.Get().Info().Str("document", doc.ID).Str("name", doc.Name).Str("type", doc.MediaType).
		Int("characters", len([]rune(doc.Content))).Msg("document uploaded")
	return doc, nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	if documentID == "" {
		return nil, domain.NewValidationError("documentId", "is required")
	}
	return s.store.GetDocument(ctx, documentID)
}

// List returns documents in any of the given statuses, or all documents.
func (s *DocumentService) List(ctx context.Context, statuses ...domain.EmbeddingStatus) ([]domain.Document, error) {
	for _, st := range statuses {
		if !st.IsValid() {
			return nil, domain.NewValidationError("status", "unknown embedding status %q", st)
		}
	}
	return s.store.ListDocuments(ctx, statuses...)
}

// Chunks returns the stored chunks of a document.
func (s *DocumentService) Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	if _, err := s.Get(ctx, documentID); err != nil {
		return nil, err
	}
	return s.store.GetChunks(ctx, documentID)
}

// Delete removes a document and its chunks.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	if _, err := s.Get(ctx, documentID); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	logger.Info("deleted document %s", documentID)
	return nil
}

// Reset removes a document's chunks and returns it to pending so it can be
// embedded again. A document that is being embedded cannot be reset.
func (s *DocumentService) Reset(ctx context.Context, documentID string) error {
	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.EmbeddingStatus == domain.EmbeddingProcessing {
		return fmt.Errorf("reset %s: %w", documentID, domain.ErrAlreadyProcessing)
	}

	if err := s.store.ReplaceChunks(ctx, documentID, nil); err != nil {
		return err
	}
	if err := s.store.UpdateEmbeddingStatus(ctx, documentID, domain.EmbeddingPending, 0, ""); err != nil {
		return err
	}
	s.publish(documentID, domain.EmbeddingPending)
	return nil
}

// ForceReload deletes every chunk and then every document.
func (s *DocumentService) ForceReload(ctx context.Context) error {
	if err := s.store.DeleteAllChunks(ctx); err != nil {
		return err
	}
	if err := s.store.DeleteAllDocuments(ctx); err != nil {
		return err
	}
	logger.Info("force reload: all documents and chunks removed")
	return nil
}

// Stats returns pipeline diagnostics.
func (s *DocumentService) Stats(ctx context.Context) (*domain.PipelineStats, error) {
	return s.store.Stats(ctx)
}

func (s *DocumentService) publish(documentID string, status domain.EmbeddingStatus) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(domain.StatusEvent{DocumentID: documentID, Status: status, At: time.Now()})
}
