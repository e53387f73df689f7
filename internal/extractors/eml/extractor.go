// Package eml provides a TextExtractor for RFC 822 email messages.
package eml

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
	"github.com/custodia-labs/ragline/internal/extractors/html"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles EML (email) documents.
type Extractor struct{}

// New creates a new EML extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"message/rfc822"}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract renders the headers and the text body of a message.
// The subject becomes the title. Plain text parts are preferred over HTML.
func (e *Extractor) Extract(_ context.Context, upload *domain.Upload) (*domain.Extracted, error) {
	if upload == nil {
		return nil, domain.ErrInvalidInput
	}

	msg, err := mail.ReadMessage(bytes.NewReader(upload.Data))
	if err != nil {
		return nil, domain.NewValidationError("content", "unreadable email: %v", err)
	}

	subject := decodeHeader(msg.Header.Get("Subject"))
	body := extractBody(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)

	var content strings.Builder
	for _, h := range []string{"From", "To", "Date"} {
		if v := decodeHeader(msg.Header.Get(h)); v != "" {
			content.WriteString(h + ": " + v + "\n")
		}
	}
	if subject != "" {
		content.WriteString("Subject: " + subject + "\n")
	}
	content.WriteString("\n")
	content.WriteString(body)

	return &domain.Extracted{
		Title:     subject,
		Text:      strings.TrimSpace(content.String()),
		MediaType: "message/rfc822",
	}, nil
}

// decodeHeader decodes RFC 2047 encoded headers.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// extractBody extracts the text of a message or part body.
func extractBody(contentType, transferEncoding string, r io.Reader) string {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return extractMultipart(r, params["boundary"])
	}

	data, err := io.ReadAll(decodeTransfer(transferEncoding, r))
	if err != nil {
		return ""
	}
	switch mediaType {
	case "text/html":
		return html.Text(string(data))
	case "text/plain":
		return strings.ReplaceAll(string(data), "\r\n", "\n")
	default:
		return ""
	}
}

// extractMultipart walks the parts, preferring plain text over HTML.
func extractMultipart(r io.Reader, boundary string) string {
	if boundary == "" {
		return ""
	}

	mr := multipart.NewReader(r, boundary)
	var textParts, htmlParts []string
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		partType := part.Header.Get("Content-Type")
		mediaType, _, _ := mime.ParseMediaType(partType)
		text := extractBody(partType, part.Header.Get("Content-Transfer-Encoding"), part)
		part.Close()
		if strings.TrimSpace(text) == "" {
			continue
		}

		if mediaType == "text/html" {
			htmlParts = append(htmlParts, text)
		} else {
			textParts = append(textParts, text)
		}
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n")
	}
	return strings.Join(htmlParts, "\n")
}

// decodeTransfer undoes a Content-Transfer-Encoding.
// multipart.Reader already decodes quoted-printable parts.
func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, newlineStripper{r})
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

// newlineStripper drops CR and LF so wrapped base64 decodes.
type newlineStripper struct {
	r io.Reader
}

func (n newlineStripper) Read(p []byte) (int, error) {
	for {
		count, err := n.r.Read(p)
		kept := 0
		for _, b := range p[:count] {
			if b != '\r' && b != '\n' {
				p[kept] = b
				kept++
			}
		}
		if kept > 0 || err != nil {
			return kept, err
		}
	}
}
