package domain

import "time"

// DocumentStatus is the upload lifecycle state of a document.
type DocumentStatus string

// Document lifecycle states.
const (
	// DocumentStatusUploaded is set when a document is first stored.
	DocumentStatusUploaded DocumentStatus = "uploaded"
)

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// EmbeddingStatus is the embedding lifecycle state of a document.
type EmbeddingStatus string

// Embedding lifecycle states.
const (
	// EmbeddingPending means the document is waiting to be embedded.
	EmbeddingPending EmbeddingStatus = "pending"

	// EmbeddingProcessing means an embedding run owns the document.
	EmbeddingProcessing EmbeddingStatus = "processing"

	// EmbeddingCompleted means every chunk was embedded and stored.
	EmbeddingCompleted EmbeddingStatus = "completed"

	// EmbeddingFailed means the last run failed. The document can be retried.
	EmbeddingFailed EmbeddingStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s EmbeddingStatus) IsValid() bool {
	switch s {
	case EmbeddingPending, EmbeddingProcessing, EmbeddingCompleted, EmbeddingFailed:
		return true
	default:
		return false
	}
}

// IsClaimable returns true if an embedding run may take the document.
func (s EmbeddingStatus) IsClaimable() bool {
	return s == EmbeddingPending || s == EmbeddingFailed
}

// String returns the string representation.
func (s EmbeddingStatus) String() string {
	return string(s)
}

// AllEmbeddingStatuses returns every embedding status in lifecycle order.
func AllEmbeddingStatuses() []EmbeddingStatus {
	return []EmbeddingStatus{
		EmbeddingPending,
		EmbeddingProcessing,
		EmbeddingCompleted,
		EmbeddingFailed,
	}
}

// Document represents an uploaded document and its embedding state.
type Document struct {
	// ID is the unique identifier for the document.
	ID string `json:"id"`

	// Name is the display name, usually the file name.
	Name string `json:"name"`

	// Size is the declared size of the upload in bytes.
	Size int64 `json:"size"`

	// MediaType is the MIME type of the upload.
	MediaType string `json:"type"`

	// Content is the full extracted plain text.
	Content string `json:"content,omitempty"`

	// Status is the upload lifecycle state.
	Status DocumentStatus `json:"status"`

	// EmbeddingStatus is the embedding lifecycle state.
	EmbeddingStatus EmbeddingStatus `json:"embedding_status"`

	// ChunkCount is the number of stored chunks.
	// Only authoritative once EmbeddingStatus is completed.
	ChunkCount int `json:"chunk_count"`

	// LastError is a caller-safe summary of the last failed run.
	LastError string `json:"last_error,omitempty"`

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the document was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Chunk is a contiguous slice of a document's text with its embedding.
// Chunks are created in bulk by an embedding run and never mutated.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string `json:"id"`

	// DocumentID links to the owning Document.
	DocumentID string `json:"document_id"`

	// Index is the zero-based position within the document.
	Index int `json:"chunk_index"`

	// Content is the text of this chunk.
	Content string `json:"content"`

	// Embedding is the vector representation of Content.
	Embedding []float32 `json:"embedding,omitempty"`
}

// Upload is raw content handed to the system for ingestion.
type Upload struct {
	// Name is the display name, usually the file name.
	Name string

	// MediaType is the declared MIME type. May be empty.
	MediaType string

	// Data is the raw bytes.
	Data []byte
}

// Extracted is the plain text recovered from an Upload.
type Extracted struct {
	// Title is a human-readable title, if the format carries one.
	Title string

	// Text is the plain text content.
	Text string

	// MediaType is the MIME type the extractor treated the upload as.
	MediaType string
}

// StatusEvent describes an embedding status transition.
type StatusEvent struct {
	// DocumentID identifies the document.
	DocumentID string `json:"documentId"`

	// Status is the new embedding status.
	Status EmbeddingStatus `json:"status"`

	// ChunkCount is set when Status is completed.
	ChunkCount int `json:"chunkCount,omitempty"`

	// Error is set when Status is failed.
	Error string `json:"error,omitempty"`

	// At is when the transition happened.
	At time.Time `json:"at"`
}
