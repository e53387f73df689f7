package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/storetest"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

// dsnEnv names the variable holding a test database connection string.
const dsnEnv = "RAGLINE_TEST_POSTGRES_DSN"

// setupTestStore connects to the test database and empties it.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}

	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	_, err = store.db.ExecContext(ctx, "TRUNCATE document_chunks, documents")
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

// TestDocumentStore_Contract runs the shared store suite against PostgreSQL.
func TestDocumentStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) driven.DocumentStore {
		return setupTestStore(t)
	})
}

func TestNewStore_RequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewStore_Migrations(t *testing.T) {
	store := setupTestStore(t)

	var version int
	err := store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestToVector(t *testing.T) {
	assert.Nil(t, toVector(nil))
	assert.Nil(t, toVector([]float32{}))
	assert.NotNil(t, toVector([]float32{1, 2}))
}
