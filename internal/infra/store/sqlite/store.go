// Package sqlite persists task records to an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"taskbridge/internal/store/core"
	"taskbridge/pkg/domain"
)

const defaultPath = "taskbridge.db"

// Store keeps one row per record; attributes are stored as a JSON payload.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the sqlite database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, errors.Annotate(err, "create dirs")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Annotate(err, "open sqlite")
	}
	// sqlite permits one writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, errors.Annotate(err, "create records table")
	}
	return &Store{db: db, path: path}, nil
}

// Driver returns the store driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverSQLite }

// Put upserts the record.
func (s *Store) Put(ctx context.Context, rec domain.Record) error {
	if err := core.ValidateRecord(rec); err != nil {
		return err
	}
	payload, err := json.Marshal(rec.Attributes())
	if err != nil {
		return core.Unavailable(core.DriverSQLite, "put", rec.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO records(id,payload) VALUES(?,?) ON CONFLICT(id) DO UPDATE SET payload=excluded.payload`, rec.ID, payload)
	return core.Unavailable(core.DriverSQLite, "put", rec.ID, err)
}

// Delete removes the row for id, reporting whether one existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return false, core.Unavailable(core.DriverSQLite, "delete", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, core.Unavailable(core.DriverSQLite, "delete", id, err)
	}
	return n > 0, nil
}

// List scans the table ordered by id.
func (s *Store) List(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM records ORDER BY id`)
	if err != nil {
		return nil, core.Unavailable(core.DriverSQLite, "list", "", err)
	}
	defer func() { _ = rows.Close() }()
	out := []domain.Record{}
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, core.Unavailable(core.DriverSQLite, "list", "", errors.Annotate(err, "scan"))
		}
		var attrs domain.Create
		if err := json.Unmarshal(payload, &attrs); err != nil {
			return nil, core.Unavailable(core.DriverSQLite, "list", id, errors.Annotate(err, "decode payload"))
		}
		out = append(out, domain.NewRecord(id, attrs))
	}
	if err := rows.Err(); err != nil {
		return nil, core.Unavailable(core.DriverSQLite, "list", "", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
