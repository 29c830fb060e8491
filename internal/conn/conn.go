// Package conn defines the connection abstraction dqo executes statements on, with
// implementations over database/sql, a pgx pool and an in-memory echo recorder.
package conn

import (
	"context"
	"errors"

	"github.com/coregx/dqo/internal/dialects"
)

// ErrNoLastInsertID is returned by Result.LastInsertId when the driver cannot report it.
var ErrNoLastInsertID = errors.New("conn: last insert id not supported")

// Result reports the outcome of Execute. database/sql's sql.Result satisfies it.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// Rows iterates fetched rows. *sql.Rows satisfies it.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

// Conn is one open database connection.
type Conn interface {
	// Execute runs a statement that returns no rows.
	Execute(ctx context.Context, query string, args []interface{}) (Result, error)
	// Fetch runs a statement and returns its rows. The caller must close them.
	Fetch(ctx context.Context, query string, args []interface{}) (Rows, error)
	// Autocommit reports whether statements commit individually.
	Autocommit() bool
	// Close returns the connection to its pool.
	Close() error
}

// Tx is a connection inside a transaction.
type Tx interface {
	Conn
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner is implemented by connections that can start transactions.
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// Dialector is implemented by connections that know their backend.
type Dialector interface {
	Dialect() (*dialects.Backend, error)
}

// Pinger is implemented by sources that can check the server is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Source opens connections.
type Source interface {
	Open(ctx context.Context) (Conn, error)
	Close() error
}
