package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Contract(t *testing.T) {
	runContract(t, newTestSQLite(t))
}

func TestSQLiteStore_MoveKeepsID(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(ctx))

	id, err := s.Put(ctx, CollPending, "j.json", []byte(`{}`))
	require.NoError(t, err)

	movedID, err := s.Move(ctx, id, CollPending, CollProcessing)
	require.NoError(t, err)
	assert.Equal(t, id, movedID, "sql backends keep identifiers stable across moves")
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))

	_, err := s.Get(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}
