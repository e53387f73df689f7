package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

// documentRecord is the stored form of a document.
type documentRecord struct {
	ID              string
	Name            string
	MediaType       string
	Size            int64
	Content         string
	Status          string
	EmbeddingStatus string `badgerhold:"index"`
	ChunkCount      int
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// chunkRecord is the stored form of a chunk.
type chunkRecord struct {
	ID         string
	DocumentID string `badgerhold:"index"`
	Index      int
	Content    string
	Embedding  []float32
}

// Store is a Badger-backed document store.
type Store struct {
	store *badgerhold.Store
	path  string

	// mu serialises read-modify-write transactions so they never conflict.
	mu sync.Mutex
}

// NewStore opens or creates a Badger database under dataDir.
// If dataDir is empty, defaults to ~/.ragline/data/badger.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ragline", "data", "badger")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dataDir
	options.ValueDir = dataDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("opening badger database: %w", err)
	}
	return &Store{store: store, path: dataDir}, nil
}

// Path returns the database directory.
func (s *Store) Path() string {
	return s.path
}

// SaveDocument stores or updates a document.
func (s *Store) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		return domain.NewValidationError("id", "is required")
	}
	if err := s.store.Upsert(doc.ID, toDocumentRecord(doc)); err != nil {
		return storeErr("save document", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	var rec documentRecord
	if err := s.store.Get(id, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr("get document", err)
	}
	return rec.toDomain(), nil
}

// GetDocuments retrieves the documents that exist among ids, in the order of ids.
func (s *Store) GetDocuments(ctx context.Context, ids []string) ([]domain.Document, error) {
	seen := make(map[string]bool, len(ids))
	var result []domain.Document
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		doc, err := s.GetDocument(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, *doc)
	}
	return result, nil
}

// ListDocuments returns documents in the given statuses, oldest first.
func (s *Store) ListDocuments(_ context.Context, statuses ...domain.EmbeddingStatus) ([]domain.Document, error) {
	query := badgerhold.Where("ID").Ne("")
	if len(statuses) > 0 {
		values := make([]interface{}, len(statuses))
		for i, st := range statuses {
			values[i] = string(st)
		}
		query = badgerhold.Where("EmbeddingStatus").In(values...).Index("EmbeddingStatus")
	}

	var recs []documentRecord
	if err := s.store.Find(&recs, query); err != nil {
		return nil, storeErr("list documents", err)
	}

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})

	docs := make([]domain.Document, len(recs))
	for i := range recs {
		docs[i] = *recs[i].toDomain()
	}
	return docs, nil
}

// DeleteDocument removes a document and its chunks in one transaction.
func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Badger().Update(func(tx *badgerdb.Txn) error {
		if err := s.store.TxDelete(tx, id, documentRecord{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return err
		}
		return s.store.TxDeleteMatching(tx, chunkRecord{}, badgerhold.Where("DocumentID").Eq(id).Index("DocumentID"))
	})
	if err != nil {
		return storeErr("delete document", err)
	}
	return nil
}

// DeleteAllDocuments removes every document and chunk.
func (s *Store) DeleteAllDocuments(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Badger().Update(func(tx *badgerdb.Txn) error {
		if err := s.store.TxDeleteMatching(tx, chunkRecord{}, badgerhold.Where("ID").Ne("")); err != nil {
			return err
		}
		return s.store.TxDeleteMatching(tx, documentRecord{}, badgerhold.Where("ID").Ne(""))
	})
	if err != nil {
		return storeErr("delete all documents", err)
	}
	return nil
}

// ClaimForEmbedding moves a pending or failed document to processing.
func (s *Store) ClaimForEmbedding(_ context.Context, id string) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed documentRecord
	err := s.store.Badger().Update(func(tx *badgerdb.Txn) error {
		if err := s.store.TxGet(tx, id, &claimed); err != nil {
			return err
		}
		switch domain.EmbeddingStatus(claimed.EmbeddingStatus) {
		case domain.EmbeddingProcessing:
			return domain.ErrAlreadyProcessing
		case domain.EmbeddingCompleted:
			return domain.ErrAlreadyEmbedded
		case domain.EmbeddingPending, domain.EmbeddingFailed:
		default:
			return fmt.Errorf("claim %s: unexpected status %q: %w", id, claimed.EmbeddingStatus, domain.ErrInvalidInput)
		}
		claimed.EmbeddingStatus = string(domain.EmbeddingProcessing)
		claimed.UpdatedAt = time.Now()
		return s.store.TxUpsert(tx, id, claimed)
	})
	if err != nil {
		return nil, classify("claim document", err)
	}
	return claimed.toDomain(), nil
}

// UpdateEmbeddingStatus sets the embedding status, chunk count and last error.
func (s *Store) UpdateEmbeddingStatus(
	_ context.Context, id string, status domain.EmbeddingStatus, chunkCount int, lastErr string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Badger().Update(func(tx *badgerdb.Txn) error {
		var rec documentRecord
		if err := s.store.TxGet(tx, id, &rec); err != nil {
			return err
		}
		rec.EmbeddingStatus = string(status)
		rec.ChunkCount = chunkCount
		rec.LastError = lastErr
		rec.UpdatedAt = time.Now()
		return s.store.TxUpsert(tx, id, rec)
	})
	if err != nil {
		return classify("update embedding status", err)
	}
	return nil
}

// ReplaceChunks atomically replaces every chunk of a document.
func (s *Store) ReplaceChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Badger().Update(func(tx *badgerdb.Txn) error {
		var doc documentRecord
		if err := s.store.TxGet(tx, documentID, &doc); err != nil {
			return err
		}
		err := s.store.TxDeleteMatching(tx, chunkRecord{},
			badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID"))
		if err != nil {
			return err
		}
		for _, c := range chunks {
			if c.DocumentID != documentID {
				return fmt.Errorf("chunk %s belongs to %s: %w", c.ID, c.DocumentID, domain.ErrInvalidInput)
			}
			if err := s.store.TxUpsert(tx, c.ID, toChunkRecord(c)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return classify("replace chunks", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *Store) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	var recs []chunkRecord
	err := s.store.Find(&recs, badgerhold.Where("DocumentID").Eq(documentID).Index("DocumentID"))
	if err != nil {
		return nil, storeErr("get chunks", err)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Index < recs[j].Index })

	chunks := make([]domain.Chunk, len(recs))
	for i, r := range recs {
		chunks[i] = r.toDomain()
	}
	return chunks, nil
}

// GetChunksForDocuments retrieves chunks for every document in ids.
func (s *Store) GetChunksForDocuments(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	seen := make(map[string]bool, len(ids))
	var out []domain.Chunk
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		chunks, err := s.GetChunks(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, chunks...)
	}
	return out, nil
}

// DeleteAllChunks removes every chunk.
func (s *Store) DeleteAllChunks(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteMatching(chunkRecord{}, badgerhold.Where("ID").Ne("")); err != nil {
		return storeErr("delete all chunks", err)
	}
	return nil
}

// ResetAllEmbeddings returns every document that is not processing to
// pending and deletes its chunks in one transaction.
func (s *Store) ResetAllEmbeddings(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	err := s.store.Badger().Update(func(tx *badgerdb.Txn) error {
		var recs []documentRecord
		err := s.store.TxFind(tx, &recs,
			badgerhold.Where("EmbeddingStatus").Ne(string(domain.EmbeddingProcessing)))
		if err != nil {
			return err
		}
		for _, rec := range recs {
			err := s.store.TxDeleteMatching(tx, chunkRecord{},
				badgerhold.Where("DocumentID").Eq(rec.ID).Index("DocumentID"))
			if err != nil {
				return err
			}
			rec.EmbeddingStatus = string(domain.EmbeddingPending)
			rec.ChunkCount = 0
			rec.LastError = ""
			rec.UpdatedAt = now
			if err := s.store.TxUpsert(tx, rec.ID, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeErr("reset embeddings", err)
	}
	return nil
}

// Stats returns a diagnostic snapshot.
func (s *Store) Stats(_ context.Context) (*domain.PipelineStats, error) {
	var docs []documentRecord
	if err := s.store.Find(&docs, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, storeErr("stats", err)
	}
	var chunks []chunkRecord
	if err := s.store.Find(&chunks, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, storeErr("stats", err)
	}

	stats := &domain.PipelineStats{TotalDocuments: len(docs), TotalChunks: len(chunks)}
	for _, d := range docs {
		stats.TotalCharacters += int64(utf8.RuneCountInString(d.Content))
		switch domain.EmbeddingStatus(d.EmbeddingStatus) {
		case domain.EmbeddingPending:
			stats.Pending++
		case domain.EmbeddingProcessing:
			stats.Processing++
		case domain.EmbeddingCompleted:
			stats.Completed++
		case domain.EmbeddingFailed:
			stats.Failed++
		}
	}

	var chunkChars int
	for _, c := range chunks {
		chunkChars += utf8.RuneCountInString(c.Content)
	}
	if len(chunks) > 0 {
		stats.AverageChunkSize = float64(chunkChars) / float64(len(chunks))
	}
	return stats, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.store.Close()
}

// storeErr wraps an infrastructure failure.
func storeErr(op string, err error) error {
	return &domain.StoreError{Op: op, Err: err}
}

// classify maps errors returned from inside a transaction.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, badgerhold.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, domain.ErrAlreadyProcessing), errors.Is(err, domain.ErrAlreadyEmbedded):
		return err
	default:
		return storeErr(op, err)
	}
}

func toDocumentRecord(doc *domain.Document) documentRecord {
	return documentRecord{
		ID:              doc.ID,
		Name:            doc.Name,
		MediaType:       doc.MediaType,
		Size:            doc.Size,
		Content:         doc.Content,
		Status:          string(doc.Status),
		EmbeddingStatus: string(doc.EmbeddingStatus),
		ChunkCount:      doc.ChunkCount,
		LastError:       doc.LastError,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

func (r *documentRecord) toDomain() *domain.Document {
	return &domain.Document{
		ID:              r.ID,
		Name:            r.Name,
		MediaType:       r.MediaType,
		Size:            r.Size,
		Content:         r.Content,
		Status:          domain.DocumentStatus(r.Status),
		EmbeddingStatus: domain.EmbeddingStatus(r.EmbeddingStatus),
		ChunkCount:      r.ChunkCount,
		LastError:       r.LastError,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func toChunkRecord(c domain.Chunk) chunkRecord {
	return chunkRecord{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		Index:      c.Index,
		Content:    c.Content,
		Embedding:  c.Embedding,
	}
}

func (r chunkRecord) toDomain() domain.Chunk {
	return domain.Chunk{
		ID:         r.ID,
		DocumentID: r.DocumentID,
		Index:      r.Index,
		Content:    r.Content,
		Embedding:  r.Embedding,
	}
}
