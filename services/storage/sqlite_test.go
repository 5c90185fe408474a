package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	s, err := OpenSQLite(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runConformance(t, newSQLiteStore)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenSQLite(dir)
	require.NoError(t, err)
	_, err = s.SaveIdentifiers(ctx, "alice", "console", []string{asinA})
	require.NoError(t, err)
	require.NoError(t, s.AddCategory(ctx, "books"))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(dir)
	require.NoError(t, err)
	defer s.Close()

	ids, err := s.GetOne(ctx, "alice", "console")
	require.NoError(t, err)
	assert.Equal(t, []string{asinA}, ids)

	categories, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Contains(t, categories, "books")
}
