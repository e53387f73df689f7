package domain

// QueryRequest asks a question against a set of documents.
type QueryRequest struct {
	// Query is the question text.
	Query string `json:"query"`

	// TopK is the number of chunks to use as context. Zero means the default.
	TopK int `json:"topK"`

	// DocumentIDs restricts retrieval to these documents.
	DocumentIDs []string `json:"documentIds"`
}

// QueryResult is the answer to a QueryRequest.
type QueryResult struct {
	// Answer is the generated answer, or a caller-safe explanation on failure.
	Answer string `json:"answer"`

	// Sources lists the chunks used as context, in ranked order.
	Sources []Source `json:"sources"`

	// Context is the assembled context sent to the chat provider.
	Context string `json:"context,omitempty"`

	// Query echoes the question.
	Query string `json:"query"`
}

// Source is a citation for a QueryResult.
type Source struct {
	// DocumentName is the name of the owning document.
	DocumentName string `json:"document"`

	// DocumentType is the media type of the owning document.
	DocumentType string `json:"type,omitempty"`

	// SimilarityScore is the cosine similarity to the query.
	SimilarityScore float64 `json:"similarity"`

	// Excerpt is the start of the chunk content.
	Excerpt string `json:"excerpt"`
}

// RankedChunk is a chunk scored against a query vector.
// It exists only for the duration of one query.
type RankedChunk struct {
	// Chunk is the stored chunk.
	Chunk Chunk

	// DocumentName is the name of the owning document.
	DocumentName string

	// DocumentType is the media type of the owning document.
	DocumentType string

	// Score is the cosine similarity to the query.
	Score float64
}
