// Package html provides a TextExtractor for HTML documents.
// It extracts readable text with goquery, dropping scripts, styles and
// navigation chrome, and keeps block elements on separate lines.
package html

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// blockElements start on a new line in the extracted text.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "table": true, "section": true,
	"article": true, "header": true, "ul": true, "ol": true, "dd": true, "dt": true,
}

var multiSpaces = regexp.MustCompile(`[ \t\x{00a0}]+`)

// Extractor handles HTML documents.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (e *Extractor) Priority() int {
	return 50 // Generic MIME extractor, higher than plaintext
}

// Extract converts an HTML document to plain text.
func (e *Extractor) Extract(_ context.Context, upload *domain.Upload) (*domain.Extracted, error) {
	if upload == nil {
		return nil, domain.ErrInvalidInput
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(upload.Data))
	if err != nil {
		return nil, domain.NewValidationError("content", "unreadable HTML: %v", err)
	}

	// Title first: documentText removes <head>.
	title := documentTitle(doc)
	return &domain.Extracted{
		Title:     title,
		Text:      documentText(doc),
		MediaType: "text/html",
	}, nil
}

// Text extracts readable text from an HTML fragment or document.
func Text(source string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return ""
	}
	return documentText(doc)
}

// documentTitle extracts the page title from <title>, og:title, then <h1>.
func documentTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// documentText renders the body as text, one block per line.
func documentText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, svg, template, head, nav, iframe").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var b strings.Builder
	for _, n := range root.Nodes {
		render(&b, n)
	}

	lines := strings.Split(b.String(), "\n")
	result := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(multiSpaces.ReplaceAllString(line, " "))
		if line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}

// render writes the text below n, breaking lines around block elements.
func render(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
		return
	case html.CommentNode:
		return
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		render(b, c)
	}
	if block {
		b.WriteString("\n")
	} else if n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th") {
		b.WriteString(" ")
	}
}
