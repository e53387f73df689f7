// Package markdown provides a TextExtractor for Markdown documents.
// The document is parsed with goldmark and its text nodes are collected,
// dropping formatting markers, link targets, images and raw HTML.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

var multiNewlines = regexp.MustCompile(`\n{3,}`)

// Extractor handles Markdown documents.
type Extractor struct {
	md goldmark.Markdown
}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{
		md: goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
	}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50
}

// Extract converts Markdown to plain text. The first level-one heading
// becomes the title.
func (e *Extractor) Extract(_ context.Context, upload *domain.Upload) (*domain.Extracted, error) {
	if upload == nil {
		return nil, domain.ErrInvalidInput
	}

	source := upload.Data
	doc := e.md.Parser().Parse(text.NewReader(source))

	w := &walker{source: source}
	if err := ast.Walk(doc, w.walk); err != nil {
		return nil, err
	}

	content := multiNewlines.ReplaceAllString(w.out.String(), "\n\n")
	return &domain.Extracted{
		Title:     w.title,
		Text:      strings.TrimSpace(content),
		MediaType: "text/markdown",
	}, nil
}

// walker accumulates text while visiting the AST.
type walker struct {
	source []byte
	out    strings.Builder
	title  string
}

func (w *walker) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering && node.Level == 1 && w.title == "" {
			w.title = strings.TrimSpace(inlineText(node, w.source))
		}
		if !entering {
			w.out.WriteString("\n\n")
		}

	case *ast.Paragraph, *ast.TextBlock:
		if !entering {
			w.out.WriteString("\n\n")
		}

	case *ast.Text:
		if entering {
			w.out.Write(node.Segment.Value(w.source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				w.out.WriteString("\n")
			}
		}

	case *ast.String:
		if entering {
			w.out.Write(node.Value)
		}

	case *ast.AutoLink:
		if entering {
			w.out.Write(node.Label(w.source))
		}
		return ast.WalkSkipChildren, nil

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				w.out.Write(seg.Value(w.source))
			}
			w.out.WriteString("\n")
		}
		return ast.WalkSkipChildren, nil

	case *ast.Image, *ast.RawHTML, *ast.HTMLBlock:
		return ast.WalkSkipChildren, nil

	case *extast.TableCell:
		if !entering {
			w.out.WriteString(" ")
		}

	case *extast.TableRow, *extast.TableHeader:
		if !entering {
			w.out.WriteString("\n")
		}
	}
	return ast.WalkContinue, nil
}

// inlineText concatenates the text nodes below n.
func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
