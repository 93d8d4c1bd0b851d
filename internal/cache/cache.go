// Package cache holds the idempotency caches consulted by the worker: the
// contact directory (normalized phone → platform contact id) and the row
// index (normalized phone → tracking-table row). One record per key,
// overwritten in place, never expired.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funnel-cli/internal/store"
)

// DirectoryEntry maps a contact key to the messaging platform's contact id.
type DirectoryEntry struct {
	ContactKey         string    `json:"contact_key"`
	MaxHelperContactID string    `json:"maxhelper_contact_id"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// RowIndexEntry maps a contact key to its tracking-table row number.
type RowIndexEntry struct {
	ContactKey string    `json:"contact_key"`
	Row        int       `json:"row"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Directory is the read-through/write-through contact id cache.
type Directory struct {
	store store.ObjectStore
}

// NewDirectory creates a Directory over the given store.
func NewDirectory(s store.ObjectStore) *Directory {
	return &Directory{store: s}
}

// Get returns the cached contact id for key, reporting a miss as ok=false.
func (d *Directory) Get(ctx context.Context, key string) (string, bool, error) {
	var entry DirectoryEntry
	ok, err := readEntry(ctx, d.store, store.CollContacts, key, &entry)
	if err != nil || !ok {
		return "", false, err
	}
	return entry.MaxHelperContactID, entry.MaxHelperContactID != "", nil
}

// Set records the contact id for key, overwriting any existing entry.
func (d *Directory) Set(ctx context.Context, key, contactID string) error {
	return writeEntry(ctx, d.store, store.CollContacts, key, DirectoryEntry{
		ContactKey:         key,
		MaxHelperContactID: contactID,
		UpdatedAt:          time.Now().UTC(),
	})
}

// RowIndex is the read-through/write-through tracking-table row cache.
type RowIndex struct {
	store store.ObjectStore
}

// NewRowIndex creates a RowIndex over the given store.
func NewRowIndex(s store.ObjectStore) *RowIndex {
	return &RowIndex{store: s}
}

// Get returns the cached row number for key, reporting a miss as ok=false.
func (r *RowIndex) Get(ctx context.Context, key string) (int, bool, error) {
	var entry RowIndexEntry
	ok, err := readEntry(ctx, r.store, store.CollRows, key, &entry)
	if err != nil || !ok {
		return 0, false, err
	}
	return entry.Row, entry.Row > 0, nil
}

// Set records the row number for key, overwriting any existing entry.
func (r *RowIndex) Set(ctx context.Context, key string, row int) error {
	return writeEntry(ctx, r.store, store.CollRows, key, RowIndexEntry{
		ContactKey: key,
		Row:        row,
		UpdatedAt:  time.Now().UTC(),
	})
}

func readEntry(ctx context.Context, s store.ObjectStore, coll, key string, out any) (bool, error) {
	info, err := s.FindByName(ctx, coll, key+".json")
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	data, err := s.Get(ctx, info.ID)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, eris.Wrapf(err, "cache: decode %s/%s", coll, key)
	}
	return true, nil
}

func writeEntry(ctx context.Context, s store.ObjectStore, coll, key string, entry any) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s/%s", coll, key)
	}
	_, err = store.Upsert(ctx, s, coll, key+".json", data)
	return err
}
