package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses, extracted so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements ObjectStore using pgxpool. Same single-table
// layout as the SQLite backend; the conditional Move is one guarded UPDATE.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS objects (
	id         TEXT PRIMARY KEY,
	parent     TEXT NOT NULL,
	name       TEXT NOT NULL,
	data       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (parent, name)
);

CREATE INDEX IF NOT EXISTS idx_objects_parent_created ON objects(parent, created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) List(ctx context.Context, parent string, max int) ([]ObjectInfo, error) {
	if max <= 0 {
		max = 10000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at FROM objects WHERE parent = $1 ORDER BY created_at ASC, name ASC LIMIT $2`,
		parent, max,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s", parent)
	}
	defer rows.Close()

	var infos []ObjectInfo
	for rows.Next() {
		var info ObjectInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.CreatedAt); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan list %s", parent)
		}
		infos = append(infos, info)
	}
	return infos, eris.Wrapf(rows.Err(), "postgres: list %s", parent)
}

func (s *PostgresStore) FindByName(ctx context.Context, parent, name string) (*ObjectInfo, error) {
	var info ObjectInfo
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at FROM objects WHERE parent = $1 AND name = $2`,
		parent, name,
	).Scan(&info.ID, &info.Name, &info.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: find %s in %s", name, parent)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find %s in %s", name, parent)
	}
	return &info, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM objects WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s", id)
	}
	return data, nil
}

func (s *PostgresStore) Put(ctx context.Context, parent, name string, data []byte) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO objects (id, parent, name, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, parent, name, data, now, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return "", eris.Wrapf(ErrExists, "postgres: put %s in %s", name, parent)
		}
		return "", eris.Wrapf(err, "postgres: put %s in %s", name, parent)
	}
	return id, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, data []byte) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE objects SET data = $1, updated_at = $2 WHERE id = $3`,
		data, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: object %s", id)
	}
	return nil
}

func (s *PostgresStore) Move(ctx context.Context, id, fromParent, toParent string) (string, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE objects SET parent = $1, updated_at = $2 WHERE id = $3 AND parent = $4`,
		toParent, time.Now().UTC(), id, fromParent,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: move %s to %s", id, toParent)
	}
	if tag.RowsAffected() == 0 {
		return "", eris.Wrapf(ErrNotFound, "postgres: object %s not in %s", id, fromParent)
	}
	return id, nil
}
