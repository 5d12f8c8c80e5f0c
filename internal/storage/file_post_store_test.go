package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telefeed-sync/internal/feed"
)

func strPtr(s string) *string { return &s }

func newTestFileStore(t *testing.T) *FilePostStore {
	t.Helper()
	return NewFilePostStore(filepath.Join(t.TempDir(), "posts.json"))
}

func TestFilePostStoreLoadExisting(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingFileIsEmptyStore", func(t *testing.T) {
		store := newTestFileStore(t)
		index, err := store.LoadExisting(ctx)
		require.NoError(t, err)
		assert.Empty(t, index)
	})

	t.Run("MalformedFileAborts", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "posts.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		_, err := NewFilePostStore(path).LoadExisting(ctx)
		assert.Error(t, err)
	})

	t.Run("SkipsRecordsWithoutID", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "posts.json")
		raw := `[{"id":"2024-01-01_00001","date":"2024-01-01","text":"ok","image":null},
		         {"id":"","date":"2024-01-02","text":"no id","image":null}]`
		require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

		index, err := NewFilePostStore(path).LoadExisting(ctx)
		require.NoError(t, err)
		assert.Len(t, index, 1)
		assert.Contains(t, index, "2024-01-01_00001")
	})
}

func TestFilePostStoreUpsertBatch(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	first := feed.Post{ID: "2024-01-01_00001", Date: "2024-01-01", Text: "first"}
	second := feed.Post{ID: "2024-01-02_00002", Date: "2024-01-02", Text: "second"}
	require.NoError(t, store.UpsertBatch(ctx, []feed.Post{first, second}))

	t.Run("SortedDescending", func(t *testing.T) {
		posts, err := store.LoadAllSorted(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, second.ID, posts[0].ID)
		assert.Equal(t, first.ID, posts[1].ID)
	})

	t.Run("UpsertOverwritesByID", func(t *testing.T) {
		updated := first
		updated.Image = strPtr("https://img/1.jpg")
		require.NoError(t, store.UpsertBatch(ctx, []feed.Post{updated}))

		posts, err := store.LoadAllSorted(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		require.NotNil(t, posts[1].Image)
		assert.Equal(t, "https://img/1.jpg", *posts[1].Image)
	})

	t.Run("EmptyBatchIsNoOp", func(t *testing.T) {
		before, err := os.ReadFile(store.path)
		require.NoError(t, err)
		require.NoError(t, store.UpsertBatch(ctx, nil))
		after, err := os.ReadFile(store.path)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("NoTempFileLeftBehind", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Dir(store.path))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestFilePostStoreRoundTripImage(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	post := feed.Post{
		ID: "2024-03-05_00042", Date: "2024-03-05", Text: "hello",
		Image: strPtr("https://img/42.jpg"),
	}
	require.NoError(t, store.UpsertBatch(ctx, []feed.Post{post}))

	index, err := store.LoadExisting(ctx)
	require.NoError(t, err)
	got, ok := index[post.ID]
	require.True(t, ok)
	require.NotNil(t, got.Image)
	assert.Equal(t, *post.Image, *got.Image)
}
