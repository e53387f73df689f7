package fetch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	norm, err := Normalize("/tmp/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/notes.txt", norm)

	norm, err = Normalize("https://example.com/a.md")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.md", norm)

	norm, err = Normalize("notes.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(norm, "file://"))
	assert.True(t, strings.HasSuffix(norm, "/notes.txt"))
}

func TestFetcher_Fetch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "guide.md")
	require.NoError(t, os.WriteFile(file, []byte("# Guide"), 0o644))

	upload, err := New().Fetch(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "guide.md", upload.Name)
	assert.Equal(t, []byte("# Guide"), upload.Data)
	assert.Empty(t, upload.MediaType)

	_, err = New().Fetch(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestFetcher_List(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("h"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.md"), []byte("b"), 0o644))

	files, err := New().List(context.Background(), dir)
	require.NoError(t, err)
	sort.Strings(files)

	require.Len(t, files, 2)
	assert.True(t, strings.HasSuffix(files[0], "/a.txt"))
	assert.True(t, strings.HasSuffix(files[1], "/sub/b.md"))

	single, err := New().List(context.Background(), filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Len(t, single, 1)
}
