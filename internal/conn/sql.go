package conn

import (
	"context"
	"database/sql"

	"github.com/coregx/dqo/internal/cache"
	"github.com/coregx/dqo/internal/dialects"
	"github.com/coregx/dqo/internal/tracer"
)

// SQLSource opens dedicated connections from a database/sql pool.
type SQLSource struct {
	db   *sql.DB
	opts Options
}

// NewSQLSource wraps db.
func NewSQLSource(db *sql.DB, opts Options) *SQLSource {
	return &SQLSource{db: db, opts: opts.withDefaults()}
}

// DB returns the wrapped pool.
func (s *SQLSource) DB() *sql.DB { return s.db }

// Open checks out one connection from the pool.
func (s *SQLSource) Open(ctx context.Context) (Conn, error) {
	c, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	sc := &SQLConn{conn: c, db: s.db, opts: s.opts}
	if s.opts.StmtCache > 0 {
		sc.stmts = cache.NewStmtCacheWithCapacity(s.opts.StmtCache)
	}
	return sc, nil
}

// Ping verifies the server is reachable.
func (s *SQLSource) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the pool.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// SQLConn is a dedicated database/sql connection.
type SQLConn struct {
	conn  *sql.Conn
	db    *sql.DB
	opts  Options
	stmts *cache.StmtCache
}

// Execute runs a statement that returns no rows.
func (c *SQLConn) Execute(ctx context.Context, query string, args []interface{}) (Result, error) {
	ctx, ob := c.opts.observe(ctx, tracer.SpanExecute, query, args)

	var (
		res sql.Result
		err error
	)
	if c.stmts != nil {
		var stmt *sql.Stmt
		stmt, err = c.stmts.GetOrPrepare(ctx, query, c.conn.PrepareContext)
		if err == nil {
			res, err = stmt.ExecContext(ctx, args...)
		}
	} else {
		res, err = c.conn.ExecContext(ctx, query, args...)
	}

	var affected int64
	if err == nil {
		affected, _ = res.RowsAffected()
	}
	ob.done(ctx, affected, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Fetch runs a statement and returns its rows.
func (c *SQLConn) Fetch(ctx context.Context, query string, args []interface{}) (Rows, error) {
	ctx, ob := c.opts.observe(ctx, tracer.SpanFetch, query, args)

	var (
		rows *sql.Rows
		err  error
	)
	if c.stmts != nil {
		var stmt *sql.Stmt
		stmt, err = c.stmts.GetOrPrepare(ctx, query, c.conn.PrepareContext)
		if err == nil {
			rows, err = stmt.QueryContext(ctx, args...)
		}
	} else {
		rows, err = c.conn.QueryContext(ctx, query, args...)
	}

	ob.done(ctx, 0, err)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Autocommit is always true outside a transaction.
func (c *SQLConn) Autocommit() bool { return true }

// Begin starts a transaction on this connection.
func (c *SQLConn) Begin(ctx context.Context) (Tx, error) {
	ctx, ob := c.opts.observe(ctx, tracer.SpanBegin, "begin", nil)
	tx, err := c.conn.BeginTx(ctx, nil)
	ob.done(ctx, 0, err)
	if err != nil {
		return nil, err
	}
	return &SQLTx{tx: tx, opts: c.opts}, nil
}

// Dialect detects the backend from the pool's driver.
func (c *SQLConn) Dialect() (*dialects.Backend, error) {
	return dialects.Detect(c.db.Driver())
}

// Close releases cached statements and returns the connection to the pool.
func (c *SQLConn) Close() error {
	if c.stmts != nil {
		c.stmts.Clear()
	}
	return c.conn.Close()
}

// SQLTx is a database/sql transaction.
type SQLTx struct {
	tx   *sql.Tx
	opts Options
}

// Execute runs a statement inside the transaction.
func (t *SQLTx) Execute(ctx context.Context, query string, args []interface{}) (Result, error) {
	ctx, ob := t.opts.observe(ctx, tracer.SpanExecute, query, args)
	res, err := t.tx.ExecContext(ctx, query, args...)
	var affected int64
	if err == nil {
		affected, _ = res.RowsAffected()
	}
	ob.done(ctx, affected, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Fetch runs a query inside the transaction.
func (t *SQLTx) Fetch(ctx context.Context, query string, args []interface{}) (Rows, error) {
	ctx, ob := t.opts.observe(ctx, tracer.SpanFetch, query, args)
	rows, err := t.tx.QueryContext(ctx, query, args...)
	ob.done(ctx, 0, err)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Autocommit is false inside a transaction.
func (t *SQLTx) Autocommit() bool { return false }

// Commit commits the transaction.
func (t *SQLTx) Commit(_ context.Context) error { return t.tx.Commit() }

// Rollback aborts the transaction.
func (t *SQLTx) Rollback(_ context.Context) error { return t.tx.Rollback() }

// Close is a no-op, the owning connection is closed separately.
func (t *SQLTx) Close() error { return nil }
