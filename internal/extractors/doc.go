// Package extractors turns uploaded files into plain text for chunking.
//
// Each sub-package implements driven.TextExtractor for one family of formats.
// The Registry picks the highest priority extractor for the upload's media
// type, resolving the type from the file extension or the content when the
// caller did not declare one. Binary formats without an extractor, PDF
// included, are rejected with domain.ErrUnsupportedType.
package extractors
