// Package store provides the primitive object storage the pipeline runs on:
// name-addressed objects grouped into named collections, with list, find,
// get, put, update and move. No transactions and no locks are offered; the
// queue layer builds its claim protocol on the conditional Move alone.
package store

import (
	"context"
	"errors"
	"time"
)

// Collection names. The layout is fixed; changing it breaks compatibility
// with records written by earlier runs.
const (
	CollInbox      = "inbox"
	CollArchive    = "archive"
	CollPending    = "queue/pending"
	CollProcessing = "queue/processing"
	CollDone       = "queue/done"
	CollError      = "queue/error"
	CollRaw        = "snapshots/raw"
	CollAnalysis   = "snapshots/analysis"
	CollBatches    = "index/batches"
	CollContacts   = "index/contacts"
	CollRows       = "index/rows"
)

// Collections lists every collection a backend must provision.
var Collections = []string{
	CollInbox, CollArchive,
	CollPending, CollProcessing, CollDone, CollError,
	CollRaw, CollAnalysis,
	CollBatches, CollContacts, CollRows,
}

// ErrNotFound is returned when an object does not exist, including when a
// conditional Move loses a race because the object already left fromParent.
var ErrNotFound = errors.New("store: object not found")

// ErrExists is returned by Put when the name is already taken in the parent.
var ErrExists = errors.New("store: object already exists")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ObjectStore is the persistence contract shared by all backends.
//
// Move is conditional on fromParent: it fails with ErrNotFound when the
// object is not currently in fromParent. Backends implement this as a
// single atomic operation (rename(2), UPDATE ... WHERE parent = ?), which
// is what makes a claim verifiably exclusive. Move returns the object's
// identifier after the move; the filesystem backend derives identifiers
// from location, so it may differ from the input.
type ObjectStore interface {
	// List returns up to max objects in parent, oldest first. A max of
	// zero or less lists up to an implementation ceiling.
	List(ctx context.Context, parent string, max int) ([]ObjectInfo, error)
	// FindByName returns the object named name in parent, or ErrNotFound.
	FindByName(ctx context.Context, parent, name string) (*ObjectInfo, error)
	// Get returns the object's bytes.
	Get(ctx context.Context, id string) ([]byte, error)
	// Put creates a new object. It fails with ErrExists on a name collision.
	Put(ctx context.Context, parent, name string, data []byte) (string, error)
	// Update replaces an existing object's bytes.
	Update(ctx context.Context, id string, data []byte) error
	// Move relocates the object from fromParent to toParent.
	Move(ctx context.Context, id, fromParent, toParent string) (string, error)

	// Migrate provisions the collection layout.
	Migrate(ctx context.Context) error
	Close() error
}

// Upsert writes data under (parent, name), updating the existing object in
// place when one exists. This is the write path for cache entries and
// snapshots, which are overwritten rather than duplicated.
func Upsert(ctx context.Context, s ObjectStore, parent, name string, data []byte) (string, error) {
	info, err := s.FindByName(ctx, parent, name)
	if err == nil {
		return info.ID, s.Update(ctx, info.ID, data)
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	return s.Put(ctx, parent, name, data)
}
