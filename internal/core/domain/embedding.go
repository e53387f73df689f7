package domain

// Default chunking parameters.
const (
	// DefaultChunkSize is the default number of characters per chunk.
	DefaultChunkSize = 512

	// DefaultChunkOverlap is the default number of characters shared by neighbouring chunks.
	DefaultChunkOverlap = 50

	// MinChunkSize is the smallest chunk size accepted from configuration.
	MinChunkSize = 128

	// MaxChunkSize is the largest chunk size accepted from configuration.
	MaxChunkSize = 2048
)

// EmbedRequest asks for one document to be chunked and embedded.
type EmbedRequest struct {
	// DocumentID identifies the document.
	DocumentID string `json:"documentId"`

	// Content overrides the stored content when non-empty.
	Content string `json:"content"`

	// ChunkSize is the chunk length in characters. Zero means the default.
	ChunkSize int `json:"chunkSize"`

	// Overlap is the number of characters shared by neighbouring chunks.
	Overlap int `json:"overlap"`
}

// WithDefaults returns a copy with zero parameters replaced by defaults.
// A zero overlap is kept only when ChunkSize was set explicitly.
func (r EmbedRequest) WithDefaults() EmbedRequest {
	if r.ChunkSize == 0 {
		r.ChunkSize = DefaultChunkSize
		if r.Overlap == 0 {
			r.Overlap = DefaultChunkOverlap
		}
	}
	return r
}

// EmbedResult is the outcome of a successful embedding run.
type EmbedResult struct {
	// DocumentID identifies the document.
	DocumentID string `json:"documentId"`

	// ChunkCount is the number of chunks stored.
	ChunkCount int `json:"chunks"`
}

// EmbedOutcome is one document's line in an EmbedReport.
type EmbedOutcome struct {
	// DocumentID identifies the document.
	DocumentID string `json:"documentId"`

	// DocumentName is the display name.
	DocumentName string `json:"documentName"`

	// Success is true when the document reached completed.
	Success bool `json:"success"`

	// ChunkCount is the number of chunks stored on success.
	ChunkCount int `json:"chunks,omitempty"`

	// Error is a caller-safe failure message.
	Error string `json:"error,omitempty"`
}

// EmbedReport summarises a batch embedding run.
type EmbedReport struct {
	// Outcomes lists each document in processing order.
	Outcomes []EmbedOutcome `json:"outcomes"`

	// Succeeded counts successful documents.
	Succeeded int `json:"succeeded"`

	// Failed counts failed documents.
	Failed int `json:"failed"`
}

// Add appends an outcome and updates the counters.
func (r *EmbedReport) Add(o EmbedOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Success {
		r.Succeeded++
	} else {
		r.Failed++
	}
}

// PipelineStats is a diagnostic snapshot of the store.
type PipelineStats struct {
	TotalDocuments   int     `json:"totalDocuments"`
	TotalCharacters  int64   `json:"totalCharacters"`
	TotalChunks      int     `json:"totalChunks"`
	Pending          int     `json:"pending"`
	Processing       int     `json:"processing"`
	Completed        int     `json:"completed"`
	Failed           int     `json:"failed"`
	AverageChunkSize float64 `json:"avgChunkSize"`
}

// Count returns the number of documents in the given status.
func (s PipelineStats) Count(status EmbeddingStatus) int {
	switch status {
	case EmbeddingPending:
		return s.Pending
	case EmbeddingProcessing:
		return s.Processing
	case EmbeddingCompleted:
		return s.Completed
	case EmbeddingFailed:
		return s.Failed
	default:
		return 0
	}
}
