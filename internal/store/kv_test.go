package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKV_SetGet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "assets", "AST-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "assets", "AST-1", []byte(`{"asset_id":"AST-1"}`)))

	got, ok, err := s.Get(ctx, "assets", "AST-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"asset_id":"AST-1"}`, string(got))
}

func TestKV_BucketsAreIsolated(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "k", []byte("1")))

	_, ok, err := s.Get(ctx, "b", "k")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Count(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestKV_SetKeepsListPosition(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "q", "first", []byte("1")))
	require.NoError(t, s.Set(ctx, "q", "second", []byte("2")))
	require.NoError(t, s.Set(ctx, "q", "first", []byte("1b")))

	items, err := s.List(ctx, "q")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].Key)
	assert.Equal(t, "1b", string(items[0].Value))
	assert.Equal(t, "second", items[1].Key)
	assert.Less(t, items[0].Seq, items[1].Seq)
}

func TestKV_AddIsIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inserted, err := s.Add(ctx, "q", "e1", []byte("v1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.Add(ctx, "q", "e1", []byte("v2"))
	require.NoError(t, err)
	assert.False(t, inserted)

	got, _, err := s.Get(ctx, "q", "e1")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got), "second Add must not overwrite")
}

func TestKV_Delete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "q", "e1", []byte("v")))
	require.NoError(t, s.Delete(ctx, "q", "e1"))
	require.NoError(t, s.Delete(ctx, "q", "e1"), "deleting absent key is a no-op")

	n, err := s.Count(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestKV_ListEmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	items, err := s.List(context.Background(), "empty")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestKV_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "q", "e1", []byte("v1")))
	require.NoError(t, s1.Set(ctx, "q", "e2", []byte("v2")))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	items, err := s2.List(ctx, "q")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "e1", items[0].Key)
	assert.Equal(t, "e2", items[1].Key)
}

func TestKV_ClosedStoreErrors(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ctx := context.Background()
	assert.Error(t, s.Set(ctx, "q", "k", []byte("v")))
	_, _, err = s.Get(ctx, "q", "k")
	assert.Error(t, err)
	_, err = s.List(ctx, "q")
	assert.Error(t, err)
}
