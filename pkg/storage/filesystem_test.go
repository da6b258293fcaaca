package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diligince/closeout/pkg/storage"
)

func TestFilesystemStore_PutAndGet(t *testing.T) {
	t.Parallel()

	store := storage.NewFilesystemStore(t.TempDir())
	ctx := context.Background()

	key := "workflows/wf-1/items/item-1/report.pdf"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("first version")))

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "first version", string(data))

	// Re-uploading the same key replaces the content.
	require.NoError(t, store.Put(ctx, key, strings.NewReader("second version")))

	rc, err = store.Get(ctx, key)
	require.NoError(t, err)

	data, err = io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "second version", string(data))
}

func TestFilesystemStore_Delete(t *testing.T) {
	t.Parallel()

	store := storage.NewFilesystemStore(t.TempDir())
	ctx := context.Background()

	key := "workflows/wf-1/items/item-1/report.pdf"
	require.NoError(t, store.Put(ctx, key, strings.NewReader("body")))
	require.NoError(t, store.Delete(ctx, key))

	_, err := store.Get(ctx, key)
	assert.Error(t, err)

	// Deleting an absent key is a no-op.
	assert.NoError(t, store.Delete(ctx, key))

	assert.Error(t, store.Delete(ctx, "../escape.txt"))
}

func TestFilesystemStore_RejectsTraversalKeys(t *testing.T) {
	t.Parallel()

	store := storage.NewFilesystemStore(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"../escape.txt", "a/../../escape.txt", "/etc/passwd"} {
		err := store.Put(ctx, key, strings.NewReader("nope"))
		assert.Error(t, err, "key %q should be rejected", key)

		_, err = store.Get(ctx, key)
		assert.Error(t, err, "key %q should be rejected", key)
	}
}

func TestFilesystemStore_GetMissingKey(t *testing.T) {
	t.Parallel()

	store := storage.NewFilesystemStore(t.TempDir())

	_, err := store.Get(context.Background(), "workflows/wf-1/missing.pdf")
	assert.Error(t, err)
}
