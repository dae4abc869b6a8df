package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalFileStore_SaveAndRead(t *testing.T) {
	store := NewLocalFileStore(filepath.Join(t.TempDir(), "uploads"))
	ctx := context.Background()

	path, err := store.Save(ctx, "maize_yields.csv", []byte("yield,citation_doi\n8.1,10.1000/x\n"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "-maize_yields.csv"))

	content, err := store.Read(ctx, path)
	require.NoError(t, err)
	require.Contains(t, string(content), "10.1000/x")
}

func TestLocalFileStore_SameFilenameDoesNotCollide(t *testing.T) {
	store := NewLocalFileStore(t.TempDir())
	ctx := context.Background()

	first, err := store.Save(ctx, "data.csv", []byte("a"))
	require.NoError(t, err)
	second, err := store.Save(ctx, "data.csv", []byte("b"))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	content, err := store.Read(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "a", string(content))
}

func TestLocalFileStore_SanitizesFilename(t *testing.T) {
	store := NewLocalFileStore(t.TempDir())
	ctx := context.Background()

	path, err := store.Save(ctx, "../../etc/pass wd?.csv", []byte("x"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "-pass_wd_.csv"), path)
	require.Equal(t, store.dir, filepath.Dir(path))
}

func TestLocalFileStore_RemoveIsIdempotent(t *testing.T) {
	store := NewLocalFileStore(t.TempDir())
	ctx := context.Background()

	path, err := store.Save(ctx, "data.csv", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, path))
	require.NoError(t, store.Remove(ctx, path))

	_, err = store.Read(ctx, path)
	require.Error(t, err)
}
