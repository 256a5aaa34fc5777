// Package postgres persists task records to a PostgreSQL table through the
// pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"

	"github.com/juju/errors"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"taskbridge/internal/store/core"
	"taskbridge/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the core interface.
var _ core.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/taskbridge?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store keeps one row per record with attributes in a JSONB column.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN) and ensures the records table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, errors.Annotate(err, "open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Annotate(err, "ping postgres")
	}
	if err := ensureRecordsTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureRecordsTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return errors.Annotate(err, "ensure records table")
	}
	return nil
}

// Driver returns the store driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverPostgres }

// Put upserts the record.
func (s *Store) Put(ctx context.Context, rec domain.Record) error {
	if err := core.ValidateRecord(rec); err != nil {
		return err
	}
	payload, err := json.Marshal(rec.Attributes())
	if err != nil {
		return core.Unavailable(core.DriverPostgres, "put", rec.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO records(id,payload) VALUES($1,$2) ON CONFLICT(id) DO UPDATE SET payload=EXCLUDED.payload`, rec.ID, payload)
	return core.Unavailable(core.DriverPostgres, "put", rec.ID, err)
}

// Delete removes the row for id, reporting whether one existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return false, core.Unavailable(core.DriverPostgres, "delete", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, core.Unavailable(core.DriverPostgres, "delete", id, err)
	}
	return n > 0, nil
}

// List scans the table. Rows are sorted by id after decoding.
func (s *Store) List(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload FROM records ORDER BY id`)
	if err != nil {
		return nil, core.Unavailable(core.DriverPostgres, "list", "", err)
	}
	defer func() { _ = rows.Close() }()
	out := []domain.Record{}
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, core.Unavailable(core.DriverPostgres, "list", "", errors.Annotate(err, "scan"))
		}
		var attrs domain.Create
		if err := json.Unmarshal(payload, &attrs); err != nil {
			return nil, core.Unavailable(core.DriverPostgres, "list", id, errors.Annotate(err, "decode payload"))
		}
		out = append(out, domain.NewRecord(id, attrs))
	}
	if err := rows.Err(); err != nil {
		return nil, core.Unavailable(core.DriverPostgres, "list", "", errors.Annotate(err, "iterate records"))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
