// Package core defines the key-value store abstraction that the mutation
// handler writes through, along with its failure type.
package core

import (
	"context"
	"fmt"

	"github.com/juju/errors"

	"taskbridge/pkg/domain"
)

// Driver identifies a concrete store backend implementation.
type Driver string

const (
	// DriverMemory represents the in-process implementation used in tests and local runs.
	DriverMemory Driver = "memory"
	// DriverSQLite represents an embedded sqlite file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres represents a PostgreSQL server.
	DriverPostgres Driver = "postgres"
	// DriverDynamoDB represents an Amazon DynamoDB table keyed by id.
	DriverDynamoDB Driver = "dynamodb"
	// DriverS3 represents an S3 / MinIO compatible bucket, one object per record.
	DriverS3 Driver = "s3"
)

// Store is a single-table, single-key adapter. Operations on different keys
// carry no transactional guarantee.
type Store interface {
	// Put inserts or fully overwrites the record at rec.ID.
	Put(ctx context.Context, rec domain.Record) error
	// Delete removes the record at id, reporting whether it existed.
	// Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) (bool, error)
	// List scans the whole table and returns records ordered by id.
	List(ctx context.Context) ([]domain.Record, error)
	Driver() Driver
	Close() error
}

// StoreUnavailableError reports a backend failure (connectivity, throttling,
// encoding) for a single store operation.
type StoreUnavailableError struct {
	Driver Driver
	Op     string
	ID     string
	Err    error
}

func (e *StoreUnavailableError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s store unavailable: %s: %v", e.Driver, e.Op, e.Err)
	}
	return fmt.Sprintf("%s store unavailable: %s %s: %v", e.Driver, e.Op, e.ID, e.Err)
}

// Unwrap exposes the backend cause.
func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// Unavailable wraps a backend error. A nil err yields nil.
func Unavailable(driver Driver, op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreUnavailableError{Driver: driver, Op: op, ID: id, Err: err}
}

// IsUnavailable reports whether err is, or wraps, a StoreUnavailableError.
func IsUnavailable(err error) bool {
	var target *StoreUnavailableError
	return errors.As(err, &target)
}

// ValidateRecord rejects records that cannot be keyed.
func ValidateRecord(rec domain.Record) error {
	if rec.ID == "" {
		return errors.NotValidf("record with empty id")
	}
	return nil
}
