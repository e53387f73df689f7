package extractors

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// extensionTypes maps file extensions to media types. It is consulted
// before the platform MIME table so results do not depend on the host.
var extensionTypes = map[string]string{
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".eml":      "message/rfc822",
	".json":     "application/json",
	".csv":      "text/csv",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".pdf":      "application/pdf",
}

// Registry dispatches uploads to registered extractors by media type.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string][]driven.TextExtractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[string][]driven.TextExtractor),
	}
}

// Register adds an extractor for each of its media types.
// Extractors for the same type are kept ordered by descending priority.
func (r *Registry) Register(extractor driven.TextExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, mediaType := range extractor.SupportedMIMETypes() {
		list := append(r.extractors[mediaType], extractor)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.extractors[mediaType] = list
	}
}

// SupportedMIMETypes returns all media types with at least one extractor.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.extractors))
	for t := range r.extractors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Extract resolves the upload's media type and runs the best extractor.
func (r *Registry) Extract(ctx context.Context, upload *domain.Upload) (*domain.Extracted, error) {
	if upload == nil {
		return nil, domain.NewValidationError("upload", "is required")
	}

	mediaType := r.ResolveMediaType(upload)
	extractor := r.lookup(mediaType)
	if extractor == nil {
		return nil, fmt.Errorf("extract %q (%s): %w", upload.Name, mediaType, domain.ErrUnsupportedType)
	}

	extracted, err := extractor.Extract(ctx, upload)
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", upload.Name, err)
	}
	if extracted.MediaType == "" {
		extracted.MediaType = mediaType
	}
	return extracted, nil
}

// ResolveMediaType picks the media type used for extraction.
// A declared type wins when an extractor handles it, then the file extension,
// then content sniffing. Otherwise the best known type is returned so the
// caller can report it.
func (r *Registry) ResolveMediaType(upload *domain.Upload) string {
	declared := normalise(upload.MediaType)
	if declared != "" && r.lookup(declared) != nil {
		return declared
	}

	byExt := typeByExtension(upload.Name)
	if byExt != "" && r.lookup(byExt) != nil {
		return byExt
	}

	if declared == "" || declared == "application/octet-stream" {
		sniffed := normalise(http.DetectContentType(upload.Data))
		if r.lookup(sniffed) != nil {
			return sniffed
		}
	}

	switch {
	case declared != "" && declared != "application/octet-stream":
		return declared
	case byExt != "":
		return byExt
	default:
		return "application/octet-stream"
	}
}

// lookup returns the highest priority extractor for a media type.
func (r *Registry) lookup(mediaType string) driven.TextExtractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if list := r.extractors[mediaType]; len(list) > 0 {
		return list[0]
	}
	return nil
}

// normalise strips parameters and lowercases a media type.
func normalise(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return strings.ToLower(mediaType)
	}
	return parsed
}

// typeByExtension maps a file name to a media type.
func typeByExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	return normalise(mime.TypeByExtension(ext))
}
