package conn

import (
	"context"
	"sync"

	"github.com/coregx/dqo/internal/dialects"
)

// Statement is one recorded (sql, args) pair.
type Statement struct {
	SQL  string
	Args []interface{}
}

// Echo is a Source that records statements instead of running them. Fetch returns no
// rows and Execute affects nothing. It is meant for tests and dry runs.
type Echo struct {
	mu      sync.Mutex
	history []Statement
}

// NewEcho creates an empty recorder.
func NewEcho() *Echo {
	return &Echo{}
}

// Open returns a connection recording into e.
func (e *Echo) Open(_ context.Context) (Conn, error) {
	return &echoConn{echo: e}, nil
}

// Close is a no-op.
func (e *Echo) Close() error { return nil }

// History returns the recorded statements in order.
func (e *Echo) History() []Statement {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Statement, len(e.history))
	copy(out, e.history)
	return out
}

// Last returns the most recent statement.
func (e *Echo) Last() (Statement, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) == 0 {
		return Statement{}, false
	}
	return e.history[len(e.history)-1], true
}

// Reset forgets the history.
func (e *Echo) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
}

func (e *Echo) record(query string, args []interface{}) {
	if args == nil {
		args = []interface{}{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, Statement{SQL: query, Args: args})
}

type echoConn struct {
	echo *Echo
	tx   bool
}

func (c *echoConn) Execute(_ context.Context, query string, args []interface{}) (Result, error) {
	c.echo.record(query, args)
	return echoResult{}, nil
}

func (c *echoConn) Fetch(_ context.Context, query string, args []interface{}) (Rows, error) {
	c.echo.record(query, args)
	return emptyRows{}, nil
}

func (c *echoConn) Autocommit() bool { return !c.tx }

func (c *echoConn) Begin(_ context.Context) (Tx, error) {
	return &echoConn{echo: c.echo, tx: true}, nil
}

func (c *echoConn) Commit(_ context.Context) error { return nil }
func (c *echoConn) Rollback(_ context.Context) error { return nil }

func (c *echoConn) Dialect() (*dialects.Backend, error) { return dialects.Generic, nil }

func (c *echoConn) Close() error { return nil }

type echoResult struct{}

func (echoResult) LastInsertId() (int64, error) { return 0, ErrNoLastInsertID }
func (echoResult) RowsAffected() (int64, error) { return 0, nil }

type emptyRows struct{}

func (emptyRows) Next() bool { return false }
func (emptyRows) Scan(...interface{}) error { return nil }
func (emptyRows) Err() error { return nil }
func (emptyRows) Close() error { return nil }
