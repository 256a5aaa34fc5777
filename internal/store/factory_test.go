package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/juju/errors"

	"taskbridge/internal/config"
	"taskbridge/internal/infra/store/postgres"
	"taskbridge/internal/infra/store/postgres/testutil"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	restore := postgres.OverrideSQLOpen(func(string, string) (*sql.DB, error) {
		db, _ := testutil.NewStubDB()
		return db, nil
	})
	defer restore()

	cases := []config.Store{
		{Driver: DriverMemory},
		{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "tasks.db")},
		{Driver: DriverPostgres, PostgresDSN: "postgres://stub"},
		{Driver: DriverDynamoDB, Table: "todos"},
		{Driver: DriverS3, S3Bucket: "tasks"},
	}
	for _, cfg := range cases {
		s, err := Open(ctx, cfg, config.AWS{Region: "us-east-1", Endpoint: "http://localhost:4566"})
		if err != nil {
			t.Fatalf("%s: open: %v", cfg.Driver, err)
		}
		if s.Driver() != cfg.Driver {
			t.Fatalf("expected %s, got %s", cfg.Driver, s.Driver())
		}
		if err := s.Close(); err != nil {
			t.Fatalf("%s: close: %v", cfg.Driver, err)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.Store{Driver: "redis"}, config.AWS{}); !errors.Is(err, errors.NotValid) {
		t.Fatalf("expected not valid error, got %v", err)
	}
}

func TestOpenPropagatesBackendValidation(t *testing.T) {
	if _, err := Open(context.Background(), config.Store{Driver: DriverDynamoDB}, config.AWS{}); err == nil {
		t.Fatalf("expected error for missing table")
	}
}
