// Package chunker splits document text into overlapping fixed-size chunks.
package chunker

import (
	"github.com/google/uuid"

	"github.com/custodia-labs/ragline/internal/core/domain"
)

// Split slices text into chunks of chunkSize characters. Each chunk starts
// chunkSize-overlap characters after the previous one and splitting stops
// at the first chunk that reaches the end of the text, so the last chunk
// may be shorter. Lengths are counted in runes.
//
// Empty text yields no chunks. chunkSize must be positive and overlap must
// satisfy 0 <= overlap < chunkSize.
func Split(text string, chunkSize, overlap int) ([]string, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	n := len(runes)
	stride := chunkSize - overlap

	chunks := make([]string, 0, Count(n, chunkSize, overlap))
	for start := 0; ; start += stride {
		end := start + chunkSize
		if end >= n {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}

// Validate checks chunking parameters.
func Validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return domain.NewValidationError("chunkSize", "must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return domain.NewValidationError("overlap", "must be in [0, %d), got %d", chunkSize, overlap)
	}
	return nil
}

// Count returns the number of chunks Split produces for a text of n runes.
func Count(n, chunkSize, overlap int) int {
	if n <= 0 {
		return 0
	}
	if n <= chunkSize {
		return 1
	}
	stride := chunkSize - overlap
	return 1 + (n-chunkSize+stride-1)/stride
}

// Chunker builds domain chunks for documents.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the Chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// New creates a Chunker. Invalid parameters are reported by Chunks.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: domain.DefaultChunkSize,
		overlap:   domain.DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChunkSize returns the configured chunk size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunks splits the document content into chunks with contiguous indices.
// Embeddings are left empty.
func (c *Chunker) Chunks(documentID, content string) ([]domain.Chunk, error) {
	texts, err := Split(content, c.chunkSize, c.overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: documentID,
			Index:      i,
			Content:    text,
		}
	}
	return chunks, nil
}
