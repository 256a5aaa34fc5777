// Package store re-exports the record store abstraction and selects a backend
// from configuration. Packages outside the store tree depend on this package
// rather than on the infra backends.
package store

import "taskbridge/internal/store/core"

type (
	// Driver identifies a record store backend.
	Driver = core.Driver
	// Store persists task records.
	Store = core.Store
	// UnavailableError reports a backend I/O failure.
	UnavailableError = core.StoreUnavailableError
)

const (
	DriverMemory   = core.DriverMemory
	DriverSQLite   = core.DriverSQLite
	DriverPostgres = core.DriverPostgres
	DriverDynamoDB = core.DriverDynamoDB
	DriverS3       = core.DriverS3
)

// IsUnavailable reports whether err wraps a backend I/O failure.
func IsUnavailable(err error) bool { return core.IsUnavailable(err) }
