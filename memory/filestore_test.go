package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "memory.json")
	store := NewFileStore(path)
	ctx := context.Background()

	snap := Snapshot{
		1: {10: []Turn{{Question: "q", Answer: "a"}}},
		2: {20: []Turn{{Question: "x", Answer: "y"}, {Question: "z", Answer: "w"}}},
	}
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestFileStoreOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	store := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, Snapshot{1: {10: []Turn{{Question: "old"}}}}))
	require.NoError(t, store.Save(ctx, Snapshot{1: {10: []Turn{{Question: "new"}}}}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", loaded[1][10][0].Question)
}

func TestFileStoreReleasesLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save(context.Background(), Snapshot{}))

	_, err := os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err), "lock file removed after save")
}
