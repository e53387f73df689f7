package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragline/internal/adapters/driven/storage/storetest"
	"github.com/custodia-labs/ragline/internal/core/domain"
	"github.com/custodia-labs/ragline/internal/core/ports/driven"
)

func openStore(t *testing.T, dir string) *Store {
	t.Helper()
	store, err := NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDocumentStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) driven.DocumentStore {
		return openStore(t, t.TempDir()).DocumentStore()
	})
}

func TestNewStore(t *testing.T) {
	t.Run("creates nested directory and database file", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "a", "b")
		store := openStore(t, dir)

		assert.DirExists(t, dir)
		assert.Equal(t, filepath.Join(dir, "ragline.db"), store.Path())
		assert.FileExists(t, store.Path())
		assert.NoError(t, store.db.Ping())
	})

	t.Run("unusable path", func(t *testing.T) {
		_, err := NewStore("/invalid\x00path")
		assert.ErrorContains(t, err, "creating data directory")
	})

	t.Run("schema and pragmas", func(t *testing.T) {
		store := openStore(t, t.TempDir())

		var version, fk int
		require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
		assert.Equal(t, 1, version)
		require.NoError(t, store.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 1, fk)

		for _, table := range []string{"documents", "document_chunks"} {
			var n int
			require.NoError(t, store.db.QueryRow(
				"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
			).Scan(&n))
			assert.Equal(t, 1, n, table)
		}
	})
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewStore(dir)
	require.NoError(t, err)
	docs := first.DocumentStore()
	require.NoError(t, docs.SaveDocument(ctx, storetest.NewDocument("doc", "persisted", 0)))
	require.NoError(t, docs.ReplaceChunks(ctx, "doc", storetest.NewChunks("doc", 2)))
	require.NoError(t, first.Close())

	reopened := openStore(t, dir)

	var applied int
	require.NoError(t, reopened.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)

	got, err := reopened.DocumentStore().GetDocument(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Content)

	chunks, err := reopened.DocumentStore().GetChunks(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, []float32{1, 0.5, -1.25}, chunks[1].Embedding)
}

func TestStore_Close(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Close())
	assert.Error(t, store.db.Ping())
}

func TestDocumentStore_ReplaceChunks_RollsBack(t *testing.T) {
	ctx := context.Background()
	docs := openStore(t, t.TempDir()).DocumentStore()

	require.NoError(t, docs.SaveDocument(ctx, storetest.NewDocument("doc", "x", 0)))
	require.NoError(t, docs.ReplaceChunks(ctx, "doc", storetest.NewChunks("doc", 2)))

	// A repeated chunk_index fails on the third insert.
	bad := storetest.NewChunks("doc", 3)
	bad[2].Index = 0
	assert.ErrorIs(t, docs.ReplaceChunks(ctx, "doc", bad), domain.ErrStore)

	chunks, err := docs.GetChunks(ctx, "doc")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestDocumentStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := openStore(t, t.TempDir()).DocumentStore().SaveDocument(ctx, storetest.NewDocument("doc", "x", 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrStore))
}

func TestPlaceholdersAndDedupe(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "b", "a"}))
	assert.Empty(t, dedupe(nil))
}

func TestEmbeddingEncoding(t *testing.T) {
	// Little-endian IEEE 754: 1.0 is 0x3f800000, -1.0 is 0xbf800000.
	encoded := []byte{0, 0, 0, 0, 0, 0, 0x80, 0x3f, 0, 0, 0x80, 0xbf}
	assert.Equal(t, encoded, float32SliceToBytes([]float32{0, 1, -1}))
	assert.Equal(t, []float32{0, 1, -1}, bytesToFloat32Slice(encoded))

	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice([]byte{}))

	vec := []float32{0.1, -0.5, 100.5, -200.75}
	assert.Equal(t, vec, bytesToFloat32Slice(float32SliceToBytes(vec)))
}
