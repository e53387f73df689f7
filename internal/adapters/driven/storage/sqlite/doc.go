// Package sqlite provides the SQLite implementation of driven.DocumentStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Documents and their chunks live in two
// tables joined by a cascading foreign key:
//
//   - documents: uploaded text and its embedding status
//   - document_chunks: chunk text and float32 embedding blobs
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.ragline/data/ragline.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode, and transactions begin IMMEDIATE so a claim and a chunk
// replacement never interleave.
package sqlite
