package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetDelete(t *testing.T) {
	s, err := Open(InMemory)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, KeyAuthToken, "first"))
	require.NoError(t, s.Set(ctx, KeyAuthToken, "second"))
	v, ok, err := s.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", v)

	_, ok, err = s.UpdatedAt(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, KeyAuthToken))
	require.NoError(t, s.Delete(ctx, KeyAuthToken))
	_, ok, err = s.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, KeyInventorySnapshot, `{"items":[]}`))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Get(ctx, KeyInventorySnapshot)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"items":[]}`, v)
}
