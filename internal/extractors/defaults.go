package extractors

import (
	"github.com/custodia-labs/ragline/internal/extractors/docx"
	"github.com/custodia-labs/ragline/internal/extractors/eml"
	"github.com/custodia-labs/ragline/internal/extractors/html"
	"github.com/custodia-labs/ragline/internal/extractors/markdown"
	"github.com/custodia-labs/ragline/internal/extractors/plaintext"
)

// RegisterDefaults registers all built-in extractors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(eml.New())
}

// NewDefaultRegistry returns a registry with every built-in extractor.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}
