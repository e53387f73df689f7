// Package storage selects a driven.DocumentStore implementation from settings.
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/badger"
	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// Open creates the document store named by settings.Backend.
// An empty backend selects SQLite.
func Open(ctx context.Context, settings domain.StorageSettings) (driven.DocumentStore, error) {
	switch settings.Backend {
	case domain.StorageMemory:
		return memory.NewDocumentStore(), nil
	case domain.StorageSQLite, "":
		store, err := sqlite.NewStore(settings.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store.DocumentStore(), nil
	case domain.StoragePostgres:
		store, err := postgres.NewStore(ctx, settings.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	case domain.StorageBadger:
		dir := settings.Path
		if dir != "" {
			dir = filepath.Join(dir, "badger")
		}
		store, err := badger.NewStore(dir)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("storage backend %q: %w", settings.Backend, domain.ErrUnsupportedType)
	}
}
