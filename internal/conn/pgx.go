package conn

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coregx/dqo/internal/dialects"
	"github.com/coregx/dqo/internal/tracer"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgxSource opens connections from a pgx pool. It backs the asynchronous path.
type PgxSource struct {
	pool *pgxpool.Pool
	opts Options
}

// NewPgxSource wraps pool.
func NewPgxSource(pool *pgxpool.Pool, opts Options) *PgxSource {
	if opts.Database == "" {
		opts.Database = "postgres"
	}
	return &PgxSource{pool: pool, opts: opts.withDefaults()}
}

// Open acquires a connection from the pool.
func (s *PgxSource) Open(ctx context.Context) (Conn, error) {
	c, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &PgxConn{conn: c, q: c, opts: s.opts}, nil
}

// Ping verifies the server is reachable.
func (s *PgxSource) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *PgxSource) Close() error {
	s.pool.Close()
	return nil
}

// PgxConn is a pooled pgx connection, or a transaction on one.
type PgxConn struct {
	conn *pgxpool.Conn
	q    pgxQuerier
	tx   pgx.Tx
	opts Options
}

// utility statements cannot be prepared, so their arguments are interpolated client-side.
func utility(query string) bool {
	s := strings.ToLower(strings.TrimSpace(query))
	return strings.HasPrefix(s, "create") || strings.HasPrefix(s, "alter") || strings.HasPrefix(s, "drop")
}

// Execute runs a statement that returns no rows.
func (c *PgxConn) Execute(ctx context.Context, query string, args []interface{}) (Result, error) {
	ctx, ob := c.opts.observe(ctx, tracer.SpanExecute, query, args)
	callArgs := args
	if utility(query) {
		callArgs = append([]interface{}{pgx.QueryExecModeSimpleProtocol}, args...)
	}
	tag, err := c.q.Exec(ctx, query, callArgs...)
	ob.done(ctx, tag.RowsAffected(), err)
	if err != nil {
		return nil, err
	}
	return pgxResult{tag: tag}, nil
}

// Fetch runs a query and returns its rows.
func (c *PgxConn) Fetch(ctx context.Context, query string, args []interface{}) (Rows, error) {
	ctx, ob := c.opts.observe(ctx, tracer.SpanFetch, query, args)
	rows, err := c.q.Query(ctx, query, args...)
	ob.done(ctx, 0, err)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

// Autocommit is false inside a transaction.
func (c *PgxConn) Autocommit() bool { return c.tx == nil }

// Begin starts a transaction.
func (c *PgxConn) Begin(ctx context.Context) (Tx, error) {
	ctx, ob := c.opts.observe(ctx, tracer.SpanBegin, "begin", nil)
	var (
		tx  pgx.Tx
		err error
	)
	if c.tx != nil {
		tx, err = c.tx.Begin(ctx)
	} else {
		tx, err = c.conn.Begin(ctx)
	}
	ob.done(ctx, 0, err)
	if err != nil {
		return nil, err
	}
	return &PgxConn{conn: c.conn, q: tx, tx: tx, opts: c.opts}, nil
}

// Commit commits the transaction.
func (c *PgxConn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return nil
	}
	return c.tx.Commit(ctx)
}

// Rollback aborts the transaction.
func (c *PgxConn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return nil
	}
	return c.tx.Rollback(ctx)
}

// Dialect is always postgres.
func (c *PgxConn) Dialect() (*dialects.Backend, error) {
	return dialects.Postgres, nil
}

// Close releases the connection. Transactions are closed by their owning connection.
func (c *PgxConn) Close() error {
	if c.tx != nil {
		return nil
	}
	c.conn.Release()
	return nil
}

type pgxResult struct {
	tag pgconn.CommandTag
}

func (r pgxResult) LastInsertId() (int64, error) { return 0, ErrNoLastInsertID }
func (r pgxResult) RowsAffected() (int64, error) { return r.tag.RowsAffected(), nil }

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...interface{}) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Err() error { return r.rows.Err() }

func (r *pgxRows) Close() error {
	r.rows.Close()
	return r.rows.Err()
}
