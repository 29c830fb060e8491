package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/coregx/dqo/internal/conn"
	"github.com/coregx/dqo/internal/dialects"
)

// Connection is one open connection of a Database together with the dialect its SQL
// is rendered for. Connections scoped by Database.Connection or Database.Transaction
// are picked up by every query run with the returned context.
type Connection struct {
	db      *Database
	conn    conn.Conn
	dialect *dialects.Backend
	mode    execMode
	owned   bool
	closed  atomic.Bool
}

// Change is one statement of a batch passed to ExecuteAll.
type Change struct {
	SQL  string
	Args []interface{}
}

type connKey struct {
	db   *Database
	mode execMode
}

func connFromContext(ctx context.Context, db *Database, m execMode) *Connection {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(connKey{db: db, mode: m}).(*Connection)
	if c == nil || c.closed.Load() {
		return nil
	}
	return c
}

func withConn(ctx context.Context, c *Connection) context.Context {
	return context.WithValue(ctx, connKey{db: c.db, mode: c.mode}, c)
}

// open returns the connection scoped in ctx, or a new owned one.
func (db *Database) open(ctx context.Context, m execMode) (*Connection, error) {
	if c := connFromContext(ctx, db, m); c != nil {
		return &Connection{db: db, conn: c.conn, dialect: c.dialect, mode: m}, nil
	}
	raw, err := db.sourceFor(m).Open(ctx)
	if err != nil {
		return nil, WrapError(err, "dqo: open connection")
	}
	return &Connection{db: db, conn: raw, dialect: db.dialectFor(m), mode: m, owned: true}, nil
}

// Open returns a synchronous connection. When ctx already carries one for this database,
// the result shares it and its Close does nothing.
func (db *Database) Open(ctx context.Context) (*Connection, error) {
	return db.open(ctx, syncMode)
}

// OpenAsync is Open for the asynchronous source.
func (db *Database) OpenAsync(ctx context.Context) (*Connection, error) {
	return db.open(ctx, asyncMode)
}

// Connection runs fn with a context scoping one synchronous connection. Nested calls
// reuse the outer connection.
//
// Example:
//
//	err := db.Connection(ctx, func(ctx context.Context) error {
//		for row, err := range Something.All().Bind(db).Rows(ctx) {
//			...
//		}
//		return nil
//	})
func (db *Database) Connection(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.scope(ctx, syncMode, fn)
}

// AsyncConnection is Connection for the asynchronous source.
func (db *Database) AsyncConnection(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.scope(ctx, asyncMode, fn)
}

func (db *Database) scope(ctx context.Context, m execMode, fn func(ctx context.Context) error) error {
	if connFromContext(ctx, db, m) != nil {
		return fn(ctx)
	}
	c, err := db.open(ctx, m)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(withConn(ctx, c))
}

// Transaction runs fn inside a transaction. It commits when fn returns nil and rolls
// back when fn returns an error or panics. Inside an open transaction fn joins it.
//
// Example:
//
//	err := db.Transaction(ctx, func(ctx context.Context) error {
//		if _, err := A.All().Bind(db).Insert(ctx, nil); err != nil {
//			return err
//		}
//		return B.All().Bind(db).InsertMany(ctx, rows)
//	})
func (db *Database) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.transaction(ctx, syncMode, fn)
}

// AsyncTransaction is Transaction for the asynchronous source.
func (db *Database) AsyncTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.transaction(ctx, asyncMode, fn)
}

func (db *Database) transaction(ctx context.Context, m execMode, fn func(ctx context.Context) error) (err error) {
	base := connFromContext(ctx, db, m)
	if base != nil && base.InTransaction() {
		return fn(ctx)
	}
	if base == nil {
		if base, err = db.open(ctx, m); err != nil {
			return err
		}
		defer base.Close()
	}

	b, ok := base.conn.(conn.Beginner)
	if !ok {
		return fmt.Errorf("dqo: %T does not support transactions", base.conn)
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return WrapError(err, "dqo: begin")
	}
	txc := &Connection{db: db, conn: tx, dialect: base.dialect, mode: m}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err = fn(withConn(ctx, txc)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, WrapError(rbErr, "dqo: rollback"))
		}
		return err
	}
	return WrapError(tx.Commit(ctx), "dqo: commit")
}

// Dialect returns the backend the connection renders SQL for.
func (c *Connection) Dialect() *dialects.Backend { return c.dialect }

// Database returns the owning database.
func (c *Connection) Database() *Database { return c.db }

// InTransaction reports whether statements run inside an open transaction.
func (c *Connection) InTransaction() bool { return !c.conn.Autocommit() }

// Execute runs a statement that returns no rows.
func (c *Connection) Execute(ctx context.Context, sql string, args ...interface{}) (conn.Result, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	res, err := c.conn.Execute(ctx, sql, args)
	if err != nil {
		return nil, execError(sql, args, err)
	}
	return res, nil
}

// Fetch runs a statement and returns its rows.
func (c *Connection) Fetch(ctx context.Context, sql string, args ...interface{}) (conn.Rows, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	rows, err := c.conn.Fetch(ctx, sql, args)
	if err != nil {
		return nil, execError(sql, args, err)
	}
	return rows, nil
}

// ExecuteAll runs the changes in order and stops at the first failure.
func (c *Connection) ExecuteAll(ctx context.Context, changes []Change) error {
	for _, ch := range changes {
		if _, err := c.Execute(ctx, ch.SQL, ch.Args...); err != nil {
			return err
		}
	}
	return nil
}

// Close returns an owned connection to its source. Connections shared from a scope are
// left open.
func (c *Connection) Close() error {
	if !c.owned || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}
