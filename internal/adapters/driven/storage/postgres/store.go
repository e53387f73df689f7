package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// documentColumns lists the documents columns in scan order.
const documentColumns = `id, name, type, size, content, status, embedding_status,
	chunk_count, last_error, created_at, updated_at`

// Store is a PostgreSQL-backed document store.
type Store struct {
	db *sql.DB
}

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

// NewStore connects to dsn and applies pending migrations.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required: %w", domain.ErrInvalidInput)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// migrate runs all pending migrations and records each applied version.
func (s *Store) migrate(ctx context.Context, fsys embed.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}
	return nil
}

// SaveDocument stores or updates a document.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			size = EXCLUDED.size,
			content = EXCLUDED.content,
			status = EXCLUDED.status,
			embedding_status = EXCLUDED.embedding_status,
			chunk_count = EXCLUDED.chunk_count,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`, doc.ID, doc.Name, doc.MediaType, doc.Size, doc.Content, string(doc.Status),
		string(doc.EmbeddingStatus), doc.ChunkCount, doc.LastError, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return storeErr("save document", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = $1", id)
	return scanDocument(row)
}

// GetDocuments retrieves the documents that exist among ids, in the order of ids.
func (s *Store) GetDocuments(ctx context.Context, ids []string) ([]domain.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE id = ANY($1)
		ORDER BY array_position($1::text[], id)
	`, pq.Array(ids))
	if err != nil {
		return nil, storeErr("get documents", err)
	}
	defer rows.Close()
	return scanDocuments(rows, "get documents")
}

// ListDocuments returns documents in the given statuses, oldest first.
func (s *Store) ListDocuments(ctx context.Context, statuses ...domain.EmbeddingStatus) ([]domain.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents"
	var args []any
	if len(statuses) > 0 {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		query += " WHERE embedding_status = ANY($1)"
		args = append(args, pq.Array(names))
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list documents", err)
	}
	defer rows.Close()
	return scanDocuments(rows, "list documents")
}

// DeleteDocument removes a document. Chunks cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id); err != nil {
		return storeErr("delete document", err)
	}
	return nil
}

// DeleteAllDocuments removes every document and chunk.
func (s *Store) DeleteAllDocuments(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return storeErr("delete all documents", err)
	}
	return nil
}

// ClaimForEmbedding moves a pending or failed document to processing.
func (s *Store) ClaimForEmbedding(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE documents SET embedding_status = $2, updated_at = $3
		WHERE id = $1 AND embedding_status = ANY($4)
		RETURNING `+documentColumns,
		id, string(domain.EmbeddingProcessing), time.Now(),
		pq.Array([]string{string(domain.EmbeddingPending), string(domain.EmbeddingFailed)}))

	doc, err := scanDocument(row)
	if !errors.Is(err, domain.ErrNotFound) {
		return doc, err
	}

	current, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	switch current.EmbeddingStatus {
	case domain.EmbeddingProcessing:
		return nil, domain.ErrAlreadyProcessing
	case domain.EmbeddingCompleted:
		return nil, domain.ErrAlreadyEmbedded
	default:
		return nil, fmt.Errorf("claim %s: unexpected status %q: %w", id, current.EmbeddingStatus, domain.ErrInvalidInput)
	}
}

// UpdateEmbeddingStatus sets the embedding status, chunk count and last error.
func (s *Store) UpdateEmbeddingStatus(
	ctx context.Context, id string, status domain.EmbeddingStatus, chunkCount int, lastErr string,
) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET embedding_status = $2, chunk_count = $3, last_error = $4, updated_at = $5
		WHERE id = $1
	`, id, string(status), chunkCount, lastErr, time.Now())
	if err != nil {
		return storeErr("update embedding status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("update embedding status", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReplaceChunks atomically replaces every chunk of a document.
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("replace chunks", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE id = $1 FOR UPDATE", documentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return storeErr("replace chunks", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_chunks WHERE document_id = $1", documentID); err != nil {
		return storeErr("replace chunks", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return storeErr("replace chunks", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if chunk.DocumentID != documentID {
			return storeErr("replace chunks",
				fmt.Errorf("chunk %s belongs to %s: %w", chunk.ID, chunk.DocumentID, domain.ErrInvalidInput))
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, documentID, chunk.Index,
			chunk.Content, toVector(chunk.Embedding)); err != nil {
			return storeErr("replace chunks", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("replace chunks", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *Store) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, embedding
		FROM document_chunks WHERE document_id = $1
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, storeErr("get chunks", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetChunksForDocuments retrieves chunks for every document in ids.
func (s *Store) GetChunksForDocuments(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, embedding
		FROM document_chunks WHERE document_id = ANY($1)
		ORDER BY array_position($1::text[], document_id), chunk_index
	`, pq.Array(ids))
	if err != nil {
		return nil, storeErr("get chunks", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// DeleteAllChunks removes every chunk.
func (s *Store) DeleteAllChunks(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM document_chunks"); err != nil {
		return storeErr("delete all chunks", err)
	}
	return nil
}

// ResetAllEmbeddings returns every document that is not processing to
// pending and deletes its chunks. The update locks the rows it resets, so
// a concurrent claim either wins first or sees the pending row.
func (s *Store) ResetAllEmbeddings(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		WITH reset AS (
			UPDATE documents SET embedding_status = $1, chunk_count = 0, last_error = '', updated_at = $2
			WHERE embedding_status <> $3
			RETURNING id
		)
		DELETE FROM document_chunks WHERE document_id IN (SELECT id FROM reset)
	`, string(domain.EmbeddingPending), time.Now(), string(domain.EmbeddingProcessing))
	if err != nil {
		return storeErr("reset embeddings", err)
	}
	return nil
}

// Stats returns a diagnostic snapshot.
func (s *Store) Stats(ctx context.Context) (*domain.PipelineStats, error) {
	var stats domain.PipelineStats

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(char_length(content)), 0)::bigint,
			COUNT(*) FILTER (WHERE embedding_status = 'pending'),
			COUNT(*) FILTER (WHERE embedding_status = 'processing'),
			COUNT(*) FILTER (WHERE embedding_status = 'completed'),
			COUNT(*) FILTER (WHERE embedding_status = 'failed')
		FROM documents
	`).Scan(&stats.TotalDocuments, &stats.TotalCharacters,
		&stats.Pending, &stats.Processing, &stats.Completed, &stats.Failed)
	if err != nil {
		return nil, storeErr("stats", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(char_length(content)), 0)::float8 FROM document_chunks
	`).Scan(&stats.TotalChunks, &stats.AverageChunkSize)
	if err != nil {
		return nil, storeErr("stats", err)
	}
	return &stats, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// storeErr wraps an infrastructure failure.
func storeErr(op string, err error) error {
	return &domain.StoreError{Op: op, Err: err}
}

// toVector converts an embedding to a pgvector value. Empty embeddings are stored as NULL.
func toVector(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument scans a single document row.
func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status, embeddingStatus string

	if err := row.Scan(&doc.ID, &doc.Name, &doc.MediaType, &doc.Size, &doc.Content,
		&status, &embeddingStatus, &doc.ChunkCount, &doc.LastError,
		&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr("scan document", err)
	}

	doc.Status = domain.DocumentStatus(status)
	doc.EmbeddingStatus = domain.EmbeddingStatus(embeddingStatus)
	return &doc, nil
}

// scanDocuments drains rows into documents.
func scanDocuments(rows *sql.Rows, op string) ([]domain.Document, error) {
	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return docs, nil
}

// scanChunks drains rows into chunks.
func scanChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var vec *pgvector.Vector
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content, &vec); err != nil {
			return nil, storeErr("scan chunk", err)
		}
		if vec != nil {
			chunk.Embedding = vec.Slice()
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate chunks", err)
	}
	return chunks, nil
}
