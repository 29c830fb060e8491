// Package core provides the table model, the query builder and the execution layer of dqo:
// databases, scoped connections, transactions and row materialization.
package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coregx/dqo/internal/conn"
	"github.com/coregx/dqo/internal/dialects"
	"github.com/coregx/dqo/internal/logger"
	"github.com/coregx/dqo/internal/tracer"
	"github.com/coregx/dqo/internal/util"
)

// detectTimeout bounds the connection opened for dialect detection.
const detectTimeout = 10 * time.Second

// Database is a handle to one database: a synchronous source and dialect, an optional
// asynchronous source and dialect, and the registry of tables bound to it.
type Database struct {
	source       conn.Source
	asyncSource  conn.Source
	dialect      *dialects.Backend
	asyncDialect *dialects.Backend
	detect       bool

	sqlDB      *sql.DB
	driverName string
	pool       *pgxpool.Pool
	echo       *conn.Echo
	owned      []conn.Source

	logger    logger.Logger
	tracer    tracer.Tracer
	sanitizer *logger.Sanitizer
	hook      conn.Hook
	stmtCache int

	healthInterval time.Duration
	health         *healthChecker

	mu     sync.RWMutex
	tables []*Table
}

// Option is a functional option for configuring a Database.
type Option func(*Database)

// WithSource sets the synchronous connection source.
func WithSource(src conn.Source) Option {
	return func(db *Database) { db.source = src }
}

// WithAsyncSource sets the asynchronous connection source.
func WithAsyncSource(src conn.Source) Option {
	return func(db *Database) { db.asyncSource = src }
}

// WithPgxPool uses a pgx pool as the asynchronous source, with the postgres dialect.
func WithPgxPool(pool *pgxpool.Pool) Option {
	return func(db *Database) { db.pool = pool }
}

// WithDialect sets the synchronous dialect.
func WithDialect(b *dialects.Backend) Option {
	return func(db *Database) { db.dialect = b }
}

// WithAsyncDialect sets the asynchronous dialect.
func WithAsyncDialect(b *dialects.Backend) Option {
	return func(db *Database) { db.asyncDialect = b }
}

// WithAutoDetect detects missing dialects by opening and closing one connection.
func WithAutoDetect() Option {
	return func(db *Database) { db.detect = true }
}

// WithLogger sets the statement logger.
func WithLogger(l logger.Logger) Option {
	return func(db *Database) { db.logger = l }
}

// WithTracer sets the statement tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(db *Database) { db.tracer = t }
}

// WithSensitiveFields replaces the column names whose bound values are masked in logs.
func WithSensitiveFields(fields ...string) Option {
	return func(db *Database) { db.sanitizer = logger.NewSanitizer(fields) }
}

// WithQueryHook registers a callback invoked after every statement.
func WithQueryHook(h conn.Hook) Option {
	return func(db *Database) { db.hook = h }
}

// WithStmtCacheCapacity enables a per-connection prepared statement cache.
func WithStmtCacheCapacity(capacity int) Option {
	return func(db *Database) { db.stmtCache = capacity }
}

// WithMaxOpenConns sets the maximum number of open connections of a database/sql pool.
func WithMaxOpenConns(n int) Option {
	return func(db *Database) {
		if db.sqlDB != nil {
			db.sqlDB.SetMaxOpenConns(n)
		}
	}
}

// WithMaxIdleConns sets the maximum number of idle connections of a database/sql pool.
func WithMaxIdleConns(n int) Option {
	return func(db *Database) {
		if db.sqlDB != nil {
			db.sqlDB.SetMaxIdleConns(n)
		}
	}
}

// WithConnMaxLifetime sets the maximum lifetime of database/sql connections.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(db *Database) {
		if db.sqlDB != nil {
			db.sqlDB.SetConnMaxLifetime(d)
		}
	}
}

// WithHealthCheck pings the database at the given interval in the background.
func WithHealthCheck(interval time.Duration) Option {
	return func(db *Database) { db.healthInterval = interval }
}

// New builds a Database from options. At least one source is required.
//
// Example:
//
//	db, err := dqo.New(dqo.WithSource(src), dqo.WithDialect(dqo.Postgres))
func New(opts ...Option) (*Database, error) {
	db := &Database{}
	for _, opt := range opts {
		opt(db)
	}
	if err := db.init(); err != nil {
		return nil, err
	}
	return db, nil
}

// Open opens a database/sql pool. The dialect is taken from WithDialect, detected with
// WithAutoDetect, or looked up by driver name.
//
// Example:
//
//	db, err := dqo.Open("sqlite", "file:app.db", dqo.WithMaxOpenConns(1))
func Open(driverName, dsn string, opts ...Option) (*Database, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, WrapError(err, "dqo: open "+driverName)
	}
	return WrapDB(sqlDB, driverName, opts...)
}

// WrapDB builds a Database over an existing pool. The pool is closed by Database.Close.
func WrapDB(sqlDB *sql.DB, driverName string, opts ...Option) (*Database, error) {
	db := &Database{sqlDB: sqlDB, driverName: driverName}
	for _, opt := range opts {
		opt(db)
	}
	db.source = conn.NewSQLSource(sqlDB, db.connOptions(driverName))
	db.owned = append(db.owned, db.source)
	if err := db.init(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// OpenPgx creates a pgx pool for the asynchronous path.
func OpenPgx(ctx context.Context, dsn string, opts ...Option) (*Database, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, WrapError(err, "dqo: open pgx pool")
	}
	db := &Database{pool: pool}
	for _, opt := range opts {
		opt(db)
	}
	db.asyncSource = conn.NewPgxSource(pool, db.connOptions("postgres"))
	db.owned = append(db.owned, db.asyncSource)
	if db.asyncDialect == nil {
		db.asyncDialect = dialects.Postgres
	}
	if err := db.init(); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

// NewEcho returns a Database that records statements instead of running them, using the
// generic dialect. History returns what was sent.
func NewEcho(opts ...Option) *Database {
	echo := conn.NewEcho()
	db := &Database{echo: echo, source: echo, dialect: dialects.Generic}
	for _, opt := range opts {
		opt(db)
	}
	_ = db.init()
	return db
}

func (db *Database) connOptions(name string) conn.Options {
	return conn.Options{
		Database:  name,
		Logger:    db.logger,
		Tracer:    db.tracer,
		Sanitizer: db.sanitizer,
		Hook:      db.hook,
		StmtCache: db.stmtCache,
	}
}

func (db *Database) init() error {
	if db.pool != nil && db.asyncSource == nil {
		db.asyncSource = conn.NewPgxSource(db.pool, db.connOptions("postgres"))
		if db.asyncDialect == nil {
			db.asyncDialect = dialects.Postgres
		}
	}
	if db.source == nil && db.asyncSource == nil {
		return fmt.Errorf("%w: no connection source configured", ErrNoDatabase)
	}

	if db.source != nil && db.dialect == nil {
		b, err := db.resolveDialect(db.source)
		if err != nil {
			return err
		}
		db.dialect = b
	}
	if db.asyncSource != nil && db.asyncDialect == nil {
		b, err := db.resolveDialect(db.asyncSource)
		if err != nil {
			return err
		}
		db.asyncDialect = b
	}

	switch {
	case db.asyncSource == nil:
		db.asyncSource, db.asyncDialect = db.source, db.dialect
	case db.source == nil:
		db.source, db.dialect = db.asyncSource, db.asyncDialect
	}

	if db.healthInterval > 0 {
		if p, ok := db.source.(conn.Pinger); ok {
			db.health = newHealthChecker(p, db.logOrNoop(), db.healthInterval)
			db.health.start()
		}
	}
	return nil
}

func (db *Database) resolveDialect(src conn.Source) (*dialects.Backend, error) {
	if db.detect {
		ctx, cancel := util.WithTimeout(context.Background(), detectTimeout)
		defer cancel()
		return detectDialect(ctx, src)
	}
	if db.driverName != "" {
		if b, ok := dialects.Lookup(db.driverName); ok {
			return b, nil
		}
	}
	return nil, ErrDialectDetection
}

// detectDialect opens one connection, asks it for its backend and closes it.
func detectDialect(ctx context.Context, src conn.Source) (*dialects.Backend, error) {
	c, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDialectDetection, err)
	}
	defer c.Close()
	d, ok := c.(conn.Dialector)
	if !ok {
		return nil, ErrDialectDetection
	}
	b, err := d.Dialect()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDialectDetection, err)
	}
	return b, nil
}

func (db *Database) logOrNoop() logger.Logger {
	if db.logger == nil {
		return &logger.NoopLogger{}
	}
	return db.logger
}

// Logger returns the configured logger, a no-op logger when none was set.
func (db *Database) Logger() logger.Logger { return db.logOrNoop() }

// Dialect returns the synchronous dialect.
func (db *Database) Dialect() *dialects.Backend { return db.dialect }

// AsyncDialect returns the asynchronous dialect.
func (db *Database) AsyncDialect() *dialects.Backend { return db.asyncDialect }

func (db *Database) dialectFor(m execMode) *dialects.Backend {
	if m == asyncMode {
		return db.asyncDialect
	}
	return db.dialect
}

func (db *Database) sourceFor(m execMode) conn.Source {
	if m == asyncMode {
		return db.asyncSource
	}
	return db.source
}

// SQLDB returns the underlying database/sql pool, nil when the database was built otherwise.
func (db *Database) SQLDB() *sql.DB { return db.sqlDB }

// History returns the statements recorded by a database created with NewEcho.
func (db *Database) History() []conn.Statement {
	if db.echo == nil {
		return nil
	}
	return db.echo.History()
}

// ResetHistory clears the statements recorded by NewEcho.
func (db *Database) ResetHistory() {
	if db.echo != nil {
		db.echo.Reset()
	}
}

// Tables returns the tables bound to the database, in definition order.
func (db *Database) Tables() []*Table {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]*Table, len(db.tables))
	copy(out, db.tables)
	return out
}

// Table returns the bound table with the given database name.
func (db *Database) Table(dbName string) (*Table, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, t := range db.tables {
		if t.dbName == dbName {
			return t, true
		}
	}
	return nil, false
}

// register binds t. A later table with the same database name replaces the earlier one.
func (db *Database) register(t *Table) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i, existing := range db.tables {
		if existing.dbName == t.dbName {
			db.tables[i] = t
			return
		}
	}
	db.tables = append(db.tables, t)
}

// Ping checks that the synchronous source is reachable.
func (db *Database) Ping(ctx context.Context) error {
	if p, ok := db.source.(conn.Pinger); ok {
		return p.Ping(ctx)
	}
	c, err := db.source.Open(ctx)
	if err != nil {
		return err
	}
	return c.Close()
}

// IsHealthy reports the result of the last background health check. Without
// WithHealthCheck it is always true.
func (db *Database) IsHealthy() bool {
	if db.health == nil {
		return true
	}
	return db.health.isHealthy()
}

// Close stops the health checker and closes the sources the database opened itself.
func (db *Database) Close() error {
	if db.health != nil {
		db.health.shutdown()
	}
	var errs []error
	for _, src := range db.owned {
		if err := src.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
