package core

import "sync/atomic"

var (
	defaultDB      atomic.Pointer[Database]
	defaultAsyncDB atomic.Pointer[Database]
)

// SetDefaultDB sets the process-wide database used when neither the query nor its table
// is bound. Pass nil to clear it.
func SetDefaultDB(db *Database) { defaultDB.Store(db) }

// DefaultDB returns the process-wide database.
func DefaultDB() *Database { return defaultDB.Load() }

// SetDefaultAsyncDB sets the process-wide database for asynchronous operations. When
// unset, DefaultDB is used.
func SetDefaultAsyncDB(db *Database) { defaultAsyncDB.Store(db) }

// DefaultAsyncDB returns the process-wide asynchronous database.
func DefaultAsyncDB() *Database { return defaultAsyncDB.Load() }
