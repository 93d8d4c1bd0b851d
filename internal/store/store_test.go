package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises the ObjectStore behavior both local backends must
// share: createdTime-ordered listing, find/get/put/update, ErrExists on
// name collisions, and the conditional move.
func runContract(t *testing.T, s ObjectStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	// Put and read back.
	id, err := s.Put(ctx, CollPending, "a.json", []byte(`{"n":1}`))
	require.NoError(t, err)
	data, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(data))

	// Name collision.
	_, err = s.Put(ctx, CollPending, "a.json", []byte(`{}`))
	assert.ErrorIs(t, err, ErrExists)

	// Same name in a different parent is fine.
	_, err = s.Put(ctx, CollDone, "a.json", []byte(`{}`))
	require.NoError(t, err)

	// FindByName.
	info, err := s.FindByName(ctx, CollPending, "a.json")
	require.NoError(t, err)
	assert.Equal(t, "a.json", info.Name)
	_, err = s.FindByName(ctx, CollPending, "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)

	// Update in place.
	require.NoError(t, s.Update(ctx, id, []byte(`{"n":2}`)))
	data, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(data))
	assert.ErrorIs(t, s.Update(ctx, "queue/pending/nope.json", nil), ErrNotFound)

	// List is oldest-first and honors max.
	_, err = s.Put(ctx, CollPending, "b.json", []byte(`{}`))
	require.NoError(t, err)
	infos, err := s.List(ctx, CollPending, 10)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a.json", infos[0].Name)
	infos, err = s.List(ctx, CollPending, 1)
	require.NoError(t, err)
	assert.Len(t, infos, 1)

	// Conditional move: succeeds once, then the object is gone from pending.
	movedID, err := s.Move(ctx, id, CollPending, CollProcessing)
	require.NoError(t, err)
	_, err = s.Move(ctx, id, CollPending, CollProcessing)
	assert.ErrorIs(t, err, ErrNotFound, "second claimant must lose the race")

	_, err = s.FindByName(ctx, CollPending, "a.json")
	assert.ErrorIs(t, err, ErrNotFound)
	info, err = s.FindByName(ctx, CollProcessing, "a.json")
	require.NoError(t, err)
	assert.Equal(t, movedID, info.ID)

	// Moved object is still readable under its post-move id.
	data, err = s.Get(ctx, movedID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(data))
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	s, err := NewFS(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))

	id1, err := Upsert(ctx, s, CollContacts, "555.json", []byte(`{"v":1}`))
	require.NoError(t, err)
	id2, err := Upsert(ctx, s, CollContacts, "555.json", []byte(`{"v":2}`))
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "upsert must overwrite, not duplicate")

	infos, err := s.List(ctx, CollContacts, 0)
	require.NoError(t, err)
	assert.Len(t, infos, 1)

	data, err := s.Get(ctx, id2)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(data))
}
