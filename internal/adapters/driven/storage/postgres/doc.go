// Package postgres provides a PostgreSQL implementation of driven.DocumentStore.
//
// Chunks keep their embeddings in a pgvector column so the same database can
// serve nearest-neighbour queries from other tools. Ranking itself still happens
// in process over the candidate set.
//
// The connection uses github.com/lib/pq. Migrations are embedded and recorded in
// schema_migrations the same way the SQLite store does it.
package postgres
