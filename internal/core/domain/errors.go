package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown media type or provider.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrAlreadyProcessing indicates another embedding run owns the document.
	ErrAlreadyProcessing = errors.New("embedding already in progress")

	// ErrAlreadyEmbedded indicates the document is completed and must be reset first.
	ErrAlreadyEmbedded = errors.New("document already embedded")

	// ErrNoCandidates indicates a query found no embedded chunks.
	ErrNoCandidates = errors.New("no candidate chunks")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrProvider indicates an embedding or completion provider failed.
	ErrProvider = errors.New("provider error")

	// ErrStore indicates a persistence failure.
	ErrStore = errors.New("store error")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// ValidationError reports malformed or missing input.
// It is surfaced to the caller immediately and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap allows errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a ValidationError.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ProviderError reports an embedding or completion provider failure.
type ProviderError struct {
	// Provider names the provider, e.g. "openai".
	Provider string

	// Status is the HTTP status code, or 0 when unknown.
	Status int

	// Message is the provider's error message.
	Message string

	// Err is the underlying error, if any.
	Err error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" provider error")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches ErrProvider, and ErrRateLimited for status 429.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrProvider:
		return true
	case ErrRateLimited:
		return e.Status == 429
	default:
		return false
	}
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error { return e.Err }

// Temporary returns true for rate limits and server errors.
func (e *ProviderError) Temporary() bool {
	return e.Status == 429 || e.Status >= 500
}

// StoreError reports a persistence failure.
type StoreError struct {
	// Op is the store operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Is matches ErrStore.
func (e *StoreError) Is(target error) bool { return target == ErrStore }

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// NoCandidatesError reports a query that found zero embedded chunks.
type NoCandidatesError struct {
	DocumentIDs []string
}

func (e *NoCandidatesError) Error() string {
	return fmt.Sprintf("no embedded chunks for %d document(s)", len(e.DocumentIDs))
}

// Unwrap allows errors.Is(err, ErrNoCandidates).
func (e *NoCandidatesError) Unwrap() error { return ErrNoCandidates }

// EmbeddingError reports a failed embedding run for one document.
type EmbeddingError struct {
	// DocumentID identifies the document.
	DocumentID string

	// ChunkIndex is the failing chunk, or -1 when no chunk was involved.
	ChunkIndex int

	// Err is the classified cause.
	Err error
}

func (e *EmbeddingError) Error() string {
	if e.ChunkIndex < 0 {
		return fmt.Sprintf("embed document %s: %v", e.DocumentID, e.Err)
	}
	return fmt.Sprintf("embed document %s chunk %d: %v", e.DocumentID, e.ChunkIndex, e.Err)
}

// Unwrap returns the classified cause.
func (e *EmbeddingError) Unwrap() error { return e.Err }

// Caller-facing messages.
const (
	// MsgTechnicalDifficulties is returned in place of provider or store failures.
	MsgTechnicalDifficulties = "I'm experiencing technical difficulties. Please try again later."

	// MsgNoCandidates is returned when no embedded chunks match the request.
	MsgNoCandidates = "I couldn't find any embedded content in the selected documents. " +
		"Upload documents and wait for embedding to complete, then ask again."
)

// UserMessage maps an error to a natural-language message that is safe to
// show to end users. Provider payloads never appear in the result.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return "Invalid request: " + ve.Error()
	case errors.Is(err, ErrNoCandidates):
		return MsgNoCandidates
	case errors.Is(err, ErrNotFound):
		return "The requested document was not found."
	case errors.Is(err, ErrAlreadyProcessing):
		return "This document is already being embedded."
	case errors.Is(err, ErrAlreadyEmbedded):
		return "This document is already embedded. Reset it to embed it again."
	case errors.Is(err, ErrUnsupportedType):
		return "This file type is not supported."
	case errors.Is(err, ErrRateLimited):
		return "The AI provider is rate limiting requests. Please try again shortly."
	case errors.Is(err, ErrEmbeddingUnavailable), errors.Is(err, ErrLLMUnavailable):
		return "The AI provider is not configured."
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out."
	default:
		return MsgTechnicalDifficulties
	}
}
