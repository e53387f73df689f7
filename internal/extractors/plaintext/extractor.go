// Package plaintext provides the fallback TextExtractor for text formats.
package plaintext

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// utf8BOM is stripped from the start of text files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extractor handles plain text and source files.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/x-go",
		"text/x-python",
		"text/x-rust",
		"text/x-java",
		"text/x-c",
		"text/x-shellscript",
		"text/x-sql",
		"text/csv",
		"text/yaml",
		"text/toml",
		"text/javascript",
		"text/typescript",
		"text/css",
		"text/html",
		"text/markdown",
		"application/json",
		"application/xml",
		"text/xml",
	}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 5 // Fallback extractor
}

// Extract returns the upload as text with line endings normalised.
// Content that is not valid UTF-8 is treated as binary and rejected.
func (e *Extractor) Extract(_ context.Context, upload *domain.Upload) (*domain.Extracted, error) {
	if upload == nil {
		return nil, domain.ErrInvalidInput
	}

	data := bytes.TrimPrefix(upload.Data, utf8BOM)
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return nil, domain.ErrUnsupportedType
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return &domain.Extracted{
		Text:      text,
		MediaType: "text/plain",
	}, nil
}
