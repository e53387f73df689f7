// Package domain defines the core business entities for ragline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded document with its embedding lifecycle
//   - Chunk: An embedded slice of a document's text
//   - RankedChunk: A chunk scored against a query
//   - QueryResult: An answer with its source citations
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
