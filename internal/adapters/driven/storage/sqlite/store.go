package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// documentColumns lists the documents columns in scan order.
const documentColumns = `id, name, type, size, content, status, embedding_status,
	chunk_count, last_error, created_at, updated_at`

// Store is a SQLite-based document store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.ragline/data/ragline.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ragline", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ragline.db")

	// Pragmas in the DSN apply to every pooled connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// migrate runs all pending migrations and records each applied version.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			size = excluded.size,
			content = excluded.content,
			status = excluded.status,
			embedding_status = excluded.embedding_status,
			chunk_count = excluded.chunk_count,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Name, doc.MediaType, doc.Size, doc.Content, string(doc.Status),
		string(doc.EmbeddingStatus), doc.ChunkCount, doc.LastError,
		doc.CreatedAt.UTC(), doc.UpdatedAt.UTC())

	if err != nil {
		return storeErr("save document", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	return scanDocument(row)
}

// GetDocuments retrieves the documents that exist among ids, in the order of ids.
func (s *documentStore) GetDocuments(ctx context.Context, ids []string) ([]domain.Document, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id IN ("+placeholders(len(ids))+")",
		toArgs(ids)...)
	if err != nil {
		return nil, storeErr("get documents", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Document, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		byID[doc.ID] = *doc
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("get documents", err)
	}

	result := make([]domain.Document, 0, len(byID))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			result = append(result, doc)
		}
	}
	return result, nil
}

// ListDocuments returns documents in the given statuses, oldest first.
func (s *documentStore) ListDocuments(
	ctx context.Context, statuses ...domain.EmbeddingStatus,
) ([]domain.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE embedding_status IN (" + placeholders(len(statuses)) + ")"
		for _, st := range statuses {
			args = append(args, string(st))
		}
	}
	query += " ORDER BY created_at, rowid"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list documents", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list documents", err)
	}
	return docs, nil
}

// DeleteDocument removes a document. Chunks cascade.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return storeErr("delete document", err)
	}
	return nil
}

// DeleteAllDocuments removes every document and chunk.
func (s *documentStore) DeleteAllDocuments(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return storeErr("delete all documents", err)
	}
	return nil
}

// ClaimForEmbedding moves a pending or failed document to processing.
// The status check and the write are a single statement.
func (s *documentStore) ClaimForEmbedding(ctx context.Context, id string) (*domain.Document, error) {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET embedding_status = ?, updated_at = ?
		WHERE id = ? AND embedding_status IN (?, ?)
	`, string(domain.EmbeddingProcessing), time.Now().UTC(), id,
		string(domain.EmbeddingPending), string(domain.EmbeddingFailed))
	if err != nil {
		return nil, storeErr("claim document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, storeErr("claim document", err)
	}

	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, refuseClaim(doc)
	}
	return doc, nil
}

// UpdateEmbeddingStatus sets the embedding status, chunk count and last error.
func (s *documentStore) UpdateEmbeddingStatus(
	ctx context.Context, id string, status domain.EmbeddingStatus, chunkCount int, lastErr string,
) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents SET embedding_status = ?, chunk_count = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, string(status), chunkCount, lastErr, time.Now().UTC(), id)
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
func (s *documentStore) ReplaceChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("replace chunks", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE id = ?", documentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return storeErr("replace chunks", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM document_chunks WHERE document_id = ?", documentID); err != nil {
		return storeErr("replace chunks", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding)
		VALUES (?, ?, ?, ?, ?)
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
			chunk.Content, float32SliceToBytes(chunk.Embedding)); err != nil {
			return storeErr("replace chunks", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("replace chunks", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document ordered by index.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, embedding
		FROM document_chunks WHERE document_id = ?
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, storeErr("get chunks", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// GetChunksForDocuments retrieves chunks for every document in ids.
func (s *documentStore) GetChunksForDocuments(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, embedding
		FROM document_chunks WHERE document_id IN (`+placeholders(len(ids))+`)
		ORDER BY chunk_index
	`, toArgs(ids)...)
	if err != nil {
		return nil, storeErr("get chunks", err)
	}
	defer rows.Close()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	return groupByDocument(chunks, ids), nil
}

// DeleteAllChunks removes every chunk.
func (s *documentStore) DeleteAllChunks(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM document_chunks"); err != nil {
		return storeErr("delete all chunks", err)
	}
	return nil
}

// ResetAllEmbeddings returns every document that is not processing to
// pending and deletes its chunks in one transaction.
func (s *documentStore) ResetAllEmbeddings(ctx context.Context) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("reset embeddings", err)
	}
	defer tx.Rollback() //nolint:errcheck

	processing := string(domain.EmbeddingProcessing)
	_, err = tx.ExecContext(ctx, `
		DELETE FROM document_chunks WHERE document_id IN (
			SELECT id FROM documents WHERE embedding_status <> ?
		)
	`, processing)
	if err != nil {
		return storeErr("reset embeddings", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE documents SET embedding_status = ?, chunk_count = 0, last_error = '', updated_at = ?
		WHERE embedding_status <> ?
	`, string(domain.EmbeddingPending), time.Now().UTC(), processing)
	if err != nil {
		return storeErr("reset embeddings", err)
	}
	if err := tx.Commit(); err != nil {
		return storeErr("reset embeddings", err)
	}
	return nil
}

// Stats returns a diagnostic snapshot.
func (s *documentStore) Stats(ctx context.Context) (*domain.PipelineStats, error) {
	var stats domain.PipelineStats

	err := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(LENGTH(content)), 0) FROM documents
	`).Scan(&stats.TotalDocuments, &stats.TotalCharacters)
	if err != nil {
		return nil, storeErr("stats", err)
	}

	rows, err := s.store.db.QueryContext(ctx,
		"SELECT embedding_status, COUNT(*) FROM documents GROUP BY embedding_status")
	if err != nil {
		return nil, storeErr("stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storeErr("stats", err)
		}
		addStatusCount(&stats, domain.EmbeddingStatus(status), n)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("stats", err)
	}

	err = s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(LENGTH(content)), 0) FROM document_chunks
	`).Scan(&stats.TotalChunks, &stats.AverageChunkSize)
	if err != nil {
		return nil, storeErr("stats", err)
	}

	return &stats, nil
}

// Close closes the underlying database.
func (s *documentStore) Close() error {
	return s.store.Close()
}

// ==================== Helper Functions ====================

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// storeErr wraps an infrastructure failure.
func storeErr(op string, err error) error {
	return &domain.StoreError{Op: op, Err: err}
}

// refuseClaim explains why a document could not be claimed.
func refuseClaim(doc *domain.Document) error {
	switch doc.EmbeddingStatus {
	case domain.EmbeddingProcessing:
		return domain.ErrAlreadyProcessing
	case domain.EmbeddingCompleted:
		return domain.ErrAlreadyEmbedded
	default:
		return fmt.Errorf("claim %s: unexpected status %q: %w", doc.ID, doc.EmbeddingStatus, domain.ErrInvalidInput)
	}
}

// addStatusCount adds n to the counter for status.
func addStatusCount(stats *domain.PipelineStats, status domain.EmbeddingStatus, n int) {
	switch status {
	case domain.EmbeddingPending:
		stats.Pending += n
	case domain.EmbeddingProcessing:
		stats.Processing += n
	case domain.EmbeddingCompleted:
		stats.Completed += n
	case domain.EmbeddingFailed:
		stats.Failed += n
	}
}

// placeholders returns n comma-separated "?" markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// toArgs converts ids to query arguments.
func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// dedupe removes repeated ids, keeping the first occurrence.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// groupByDocument orders index-sorted chunks by the position of their document in ids.
func groupByDocument(chunks []domain.Chunk, ids []string) []domain.Chunk {
	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return rank[chunks[i].DocumentID] < rank[chunks[j].DocumentID]
	})
	return chunks
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
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

// scanChunks drains rows into chunks.
func scanChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var embeddingBlob []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index,
			&chunk.Content, &embeddingBlob); err != nil {
			return nil, storeErr("scan chunk", err)
		}
		chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate chunks", err)
	}
	return chunks, nil
}
