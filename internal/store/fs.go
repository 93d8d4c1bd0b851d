package store

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
)

// FSStore implements ObjectStore on a local directory tree. Each collection
// is a directory and each object a file; an object's identifier is its
// slash-separated path relative to the root, so identifiers change on Move.
// Conditional moves rely on rename(2) being atomic: of two concurrent
// claimants only one rename succeeds, the other sees ErrNotFound.
type FSStore struct {
	root string
}

// NewFS creates a filesystem store rooted at dir.
func NewFS(dir string) (*FSStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "fs: resolve root %s", dir)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, eris.Wrapf(err, "fs: create root %s", abs)
	}
	return &FSStore{root: abs}, nil
}

func (s *FSStore) Migrate(_ context.Context) error {
	for _, c := range Collections {
		if err := os.MkdirAll(filepath.Join(s.root, filepath.FromSlash(c)), 0o755); err != nil {
			return eris.Wrapf(err, "fs: create collection %s", c)
		}
	}
	return nil
}

func (s *FSStore) Close() error { return nil }

func (s *FSStore) abs(id string) string {
	return filepath.Join(s.root, filepath.FromSlash(id))
}

// List returns up to max files in parent ordered by modification time,
// which stands in for creation time on filesystems that do not expose one.
func (s *FSStore) List(_ context.Context, parent string, max int) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(s.abs(parent))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrNotFound, "fs: list %s", parent)
		}
		return nil, eris.Wrapf(err, "fs: list %s", parent)
	}

	var infos []ObjectInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and Stat
		}
		infos = append(infos, ObjectInfo{
			ID:        path.Join(parent, e.Name()),
			Name:      e.Name(),
			CreatedAt: fi.ModTime(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})

	if max > 0 && len(infos) > max {
		infos = infos[:max]
	}
	return infos, nil
}

func (s *FSStore) FindByName(_ context.Context, parent, name string) (*ObjectInfo, error) {
	id := path.Join(parent, name)
	fi, err := os.Stat(s.abs(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrNotFound, "fs: find %s in %s", name, parent)
		}
		return nil, eris.Wrapf(err, "fs: find %s in %s", name, parent)
	}
	return &ObjectInfo{ID: id, Name: name, CreatedAt: fi.ModTime()}, nil
}

func (s *FSStore) Get(_ context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(s.abs(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrNotFound, "fs: get %s", id)
		}
		return nil, eris.Wrapf(err, "fs: get %s", id)
	}
	return data, nil
}

func (s *FSStore) Put(_ context.Context, parent, name string, data []byte) (string, error) {
	id := path.Join(parent, name)
	f, err := os.OpenFile(s.abs(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", eris.Wrapf(ErrExists, "fs: put %s", id)
		}
		return "", eris.Wrapf(err, "fs: put %s", id)
	}
	defer f.Close() //nolint:errcheck

	if _, err := f.Write(data); err != nil {
		return "", eris.Wrapf(err, "fs: put %s", id)
	}
	return id, nil
}

func (s *FSStore) Update(_ context.Context, id string, data []byte) error {
	if _, err := os.Stat(s.abs(id)); err != nil {
		if os.IsNotExist(err) {
			return eris.Wrapf(ErrNotFound, "fs: update %s", id)
		}
		return eris.Wrapf(err, "fs: update %s", id)
	}
	if err := os.WriteFile(s.abs(id), data, 0o644); err != nil {
		return eris.Wrapf(err, "fs: update %s", id)
	}
	return nil
}

func (s *FSStore) Move(_ context.Context, id, fromParent, toParent string) (string, error) {
	if path.Dir(id) != fromParent {
		return "", eris.Wrapf(ErrNotFound, "fs: move %s: not in %s", id, fromParent)
	}
	name := path.Base(id)
	newID := path.Join(toParent, name)
	if err := os.Rename(s.abs(id), s.abs(newID)); err != nil {
		if os.IsNotExist(err) {
			return "", eris.Wrapf(ErrNotFound, "fs: move %s to %s", id, toParent)
		}
		return "", eris.Wrapf(err, "fs: move %s to %s", id, toParent)
	}
	return newID, nil
}
