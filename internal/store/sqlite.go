package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements ObjectStore using modernc.org/sqlite. Objects live
// in a single table keyed by a generated id, with (parent, name) unique.
// The conditional Move is a single UPDATE guarded by the current parent.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS objects (
	id         TEXT PRIMARY KEY,
	parent     TEXT NOT NULL,
	name       TEXT NOT NULL,
	data       BLOB NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE (parent, name)
);

CREATE INDEX IF NOT EXISTS idx_objects_parent_created ON objects(parent, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) List(ctx context.Context, parent string, max int) ([]ObjectInfo, error) {
	if max <= 0 {
		max = 10000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM objects WHERE parent = ? ORDER BY created_at ASC, name ASC LIMIT ?`,
		parent, max,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s", parent)
	}
	defer rows.Close() //nolint:errcheck

	var infos []ObjectInfo
	for rows.Next() {
		var info ObjectInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.CreatedAt); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan list %s", parent)
		}
		infos = append(infos, info)
	}
	return infos, eris.Wrapf(rows.Err(), "sqlite: list %s", parent)
}

func (s *SQLiteStore) FindByName(ctx context.Context, parent, name string) (*ObjectInfo, error) {
	var info ObjectInfo
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM objects WHERE parent = ? AND name = ?`,
		parent, name,
	).Scan(&info.ID, &info.Name, &info.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: find %s in %s", name, parent)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find %s in %s", name, parent)
	}
	return &info, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM objects WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s", id)
	}
	return data, nil
}

func (s *SQLiteStore) Put(ctx context.Context, parent, name string, data []byte) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO objects (id, parent, name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, parent, name, data, now, now,
	)
	if err != nil {
		if _, ferr := s.FindByName(ctx, parent, name); ferr == nil {
			return "", eris.Wrapf(ErrExists, "sqlite: put %s in %s", name, parent)
		}
		return "", eris.Wrapf(err, "sqlite: put %s in %s", name, parent)
	}
	return id, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, data []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE objects SET data = ?, updated_at = ? WHERE id = ?`,
		data, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update %s", id)
	}
	return checkAffected(res, id)
}

func (s *SQLiteStore) Move(ctx context.Context, id, fromParent, toParent string) (string, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE objects SET parent = ?, updated_at = ? WHERE id = ? AND parent = ?`,
		toParent, time.Now().UTC(), id, fromParent,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: move %s to %s", id, toParent)
	}
	if err := checkAffected(res, id); err != nil {
		return "", err
	}
	return id, nil
}

func checkAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected %s", id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: object %s", id)
	}
	return nil
}
