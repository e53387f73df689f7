package httpapi

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/custodia-labs/ragline/internal/adapters/driving/request"
	"github.com/custodia-labs/ragline/internal/core/domain"
)

// maxUploadBytes caps multipart uploads.
const maxUploadBytes = 32 << 20

// embedDocumentResponse is the body of a successful embed-document call.
type embedDocumentResponse struct {
	Success bool   `json:"success"`
	Chunks  int    `json:"chunks"`
	Message string `json:"message"`
}

func (s *Server) handleEmbedDocument(w http.ResponseWriter, r *http.Request) {
	var body request.EmbedDocument
	if err := decode(r, &body); err != nil {
		writeError(w, r, err, errorBody{Success: boolPtr(false)})
		return
	}

	result, err := s.ports.Embedding.EmbedDocument(r.Context(), body.ToDomain())
	if err != nil {
		writeError(w, r, err, errorBody{Success: boolPtr(false)})
		return
	}
	writeJSON(w, http.StatusOK, embedDocumentResponse{
		Success: true,
		Chunks:  result.ChunkCount,
		Message: "Document embedded successfully",
	})
}

func (s *Server) handleEmbedPending(w http.ResponseWriter, r *http.Request) {
	var body request.EmbedBatch
	if err := decode(r, &body); err != nil {
		writeError(w, r, err, errorBody{Success: boolPtr(false)})
		return
	}

	run := s.ports.Embedding.EmbedAllPending
	if r.URL.Query().Get("retry") == "failed" {
		run = s.ports.Embedding.RetryFailed
	}
	report, err := run(r.Context(), body.ChunkSize, body.Overlap)
	if err != nil {
		writeError(w, r, err, errorBody{Success: boolPtr(false)})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRAGQuery(w http.ResponseWriter, r *http.Request) {
	var body request.Query
	if err := decode(r, &body); err != nil {
		writeError(w, r, err, errorBody{Answer: domain.UserMessage(err)})
		return
	}

	result, err := s.ports.Query.Answer(r.Context(), body.ToDomain())
	switch {
	case err == nil, errors.Is(err, domain.ErrNoCandidates):
		writeJSON(w, http.StatusOK, result)
	default:
		writeError(w, r, err, errorBody{Answer: result.Answer})
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatuses(r.URL.Query()["status"])
	if err != nil {
		writeError(w, r, err, errorBody{})
		return
	}

	docs, err := s.ports.Document.List(r.Context(), statuses...)
	if err != nil {
		writeError(w, r, err, errorBody{})
		return
	}
	for i := range docs {
		docs[i].Content = ""
	}
	writeJSON(w, http.StatusOK, docs)
}

// handleUpload accepts a multipart "file" field, or a raw body named by ?name=.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	upload, err := readUpload(r)
	if err != nil {
		writeError(w, r, err, errorBody{})
		return
	}

	doc, err := s.ports.Document.Upload(r.Context(), upload)
	if err != nil {
		writeError(w, r, err, errorBody{})
		return
	}
	doc.Content = ""
	writeJSON(w, http.StatusCreated, doc)
}

func readUpload(r *http.Request) (*domain.Upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, domain.NewValidationError("body", "reading upload: %v", err)
		}
		return &domain.Upload{Name: r.URL.Query().Get("name"), MediaType: mediaType, Data: data}, nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, domain.NewValidationError("file", "multipart field \"file\" is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, domain.NewValidationError("file", "reading upload: %v", err)
	}
	return &domain.Upload{
		Name:      filepath.Base(header.Filename),
		MediaType: partMediaType(header),
		Data:      data,
	}, nil
}

func partMediaType(header *multipart.FileHeader) string {
	mediaType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil || mediaType == "application/octet-stream" {
		return ""
	}
	return mediaType
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ports.Document.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, errorBody{})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.ports.Document.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err, errorBody{})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDocumentChunks(w http.ResponseWriter, r *http.Request) {
	chunks, err := s.ports.Document.Chunks(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, errorBody{})
		return
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	if r.URL.Query().Get("embeddings") != "true" {
		for i := range chunks {
			chunks[i].Embedding = nil
		}
	}
	writeJSON(w, http.StatusOK, chunks)
}

func (s *Server) handleResetDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.ports.Document.Reset(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err, errorBody{})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ports.Document.Stats(r.Context())
	if err != nil {
		writeError(w, r, err, errorBody{})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReembed(w http.ResponseWriter, r *http.Request) {
	var body request.EmbedBatch
	if err := decode(r, &body); err != nil {
		writeError(w, r, err, errorBody{Success: boolPtr(false)})
		return
	}

	report, err := s.ports.Embedding.ReembedAll(r.Context(), body.ChunkSize, body.Overlap)
	if err != nil {
		writeError(w, r, err, errorBody{Success: boolPtr(false)})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.ports.Document.ForceReload(r.Context()); err != nil {
		writeError(w, r, err, errorBody{Success: boolPtr(false)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
