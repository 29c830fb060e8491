// Package dqo builds SQL from composable, immutable query values over declared tables,
// executes it on PostgreSQL, SQLite or MySQL through database/sql or a pgx pool, and
// diffs declared tables against a live schema.
//
//	Something := dqo.MustDefine("Something",
//		dqo.Col("col1", dqo.NewColumn(dqo.Int, dqo.PrimaryKey())),
//		dqo.Col("col2", dqo.NewColumn(dqo.String)),
//		dqo.BindDB(db),
//	)
//	row, err := Something.All().Where(Something.C("col1").Eq(1)).First(ctx)
package dqo

import (
	"github.com/coregx/dqo/internal/analyzer"
	"github.com/coregx/dqo/internal/conn"
	"github.com/coregx/dqo/internal/core"
	"github.com/coregx/dqo/internal/dialects"
	"github.com/coregx/dqo/internal/logger"
	"github.com/coregx/dqo/internal/tracer"
)

type (
	// Database holds the synchronous and asynchronous connection sources and the
	// tables bound to them.
	Database = core.Database
	// Option configures a Database.
	Option = core.Option
	// Connection is an open connection, possibly inside a transaction.
	Connection = core.Connection
	// Change is one statement with its arguments, as produced by the schema differ.
	Change = core.Change

	// Table is a defined table.
	Table = core.Table
	// TableOption configures Define.
	TableOption = core.TableOption
	// Column is a table column.
	Column = core.Column
	// ColumnOption configures a Column.
	ColumnOption = core.ColumnOption
	// Kind is the declared value type of a column.
	Kind = core.Kind
	// ForeignKey links generated columns to another table.
	ForeignKey = core.ForeignKey
	// ForeignKeySpec declares a foreign key.
	ForeignKeySpec = core.ForeignKeySpec
	// Index is a table index.
	Index = core.Index
	// IndexSpec declares an index.
	IndexSpec = core.IndexSpec

	// Row is a fetched or new table row.
	Row = core.Row
	// Values maps column names to values.
	Values = core.Values
	// Query is an immutable query value.
	Query = core.Query
	// AsyncQuery runs a Query through the asynchronous source.
	AsyncQuery = core.AsyncQuery
	// CountEntry is one group returned by Query.CountBy.
	CountEntry = core.CountEntry
	// Counts holds the groups returned by Query.CountBy.
	Counts = core.Counts

	// Expression is a node of the SQL expression tree.
	Expression = core.Expression
	// Condition is a comparison or a boolean combination of conditions.
	Condition = core.Condition
	// Function is a SQL function reference.
	Function = core.Function
	// Statement collects rendered SQL and arguments.
	Statement = core.Statement
	// Plan is the execution plan reported by Query.Explain.
	Plan = core.Plan
	// ExecError is returned when a statement fails. It carries the SQL and arguments.
	ExecError = core.ExecError

	// Backend is a database dialect.
	Backend = dialects.Backend
	// ParamStyle selects how placeholders are written.
	ParamStyle = dialects.ParamStyle
	// EchoStatement is a statement recorded by a database created with NewEcho.
	EchoStatement = conn.Statement
	// QueryEvent describes an executed statement, see WithQueryHook.
	QueryEvent = conn.Event
	// Logger is the structured logger used by connections and the schema differ.
	Logger = logger.Logger
	// Tracer opens a span per statement.
	Tracer = tracer.Tracer
)

// Future is the pending result of an asynchronous operation.
type Future[T any] = core.Future[T]

// Gather awaits every future and returns the first error.
func Gather[T any](futures ...*Future[T]) ([]T, error) {
	return core.Gather(futures...)
}

// Column kinds.
const (
	String   = core.String
	Int      = core.Int
	Float    = core.Float
	Bool     = core.Bool
	Date     = core.Date
	DateTime = core.DateTime
	UUID     = core.UUID
)

// Placeholder styles.
const (
	Question = dialects.Question
	Dollar   = dialects.Dollar
	Format   = dialects.Format
)

// Dialects.
var (
	Generic  = dialects.Generic
	Postgres = dialects.Postgres
	SQLite   = dialects.SQLite
	MySQL    = dialects.MySQL
)

// Re-export core functions.
var (
	New      = core.New
	Open     = core.Open
	OpenPgx  = core.OpenPgx
	WrapDB   = core.WrapDB
	NewEcho  = core.NewEcho
	Register = dialects.Register
	Lookup   = dialects.Lookup

	WithSource            = core.WithSource
	WithAsyncSource       = core.WithAsyncSource
	WithPgxPool           = core.WithPgxPool
	WithDialect           = core.WithDialect
	WithAsyncDialect      = core.WithAsyncDialect
	WithAutoDetect        = core.WithAutoDetect
	WithLogger            = core.WithLogger
	WithTracer            = core.WithTracer
	WithSensitiveFields   = core.WithSensitiveFields
	WithQueryHook         = core.WithQueryHook
	WithStmtCacheCapacity = core.WithStmtCacheCapacity
	WithMaxOpenConns      = core.WithMaxOpenConns
	WithMaxIdleConns      = core.WithMaxIdleConns
	WithConnMaxLifetime   = core.WithConnMaxLifetime
	WithHealthCheck       = core.WithHealthCheck

	SetDefaultDB      = core.SetDefaultDB
	DefaultDB         = core.DefaultDB
	SetDefaultAsyncDB = core.SetDefaultAsyncDB
	DefaultAsyncDB    = core.DefaultAsyncDB

	// Table definition
	Define       = core.Define
	MustDefine   = core.MustDefine
	Col          = core.Col
	PrimaryKeyOf = core.PrimaryKeyOf
	TableName    = core.TableName
	TableAka     = core.TableAka
	BindDB       = core.BindDB
	BindAsyncDB  = core.BindAsyncDB
	ForeignKeyTo = core.ForeignKeyTo
	IndexOn      = core.IndexOn
	NewColumn    = core.NewColumn
	ArrayOf      = core.ArrayOf
	PrimaryKey   = core.PrimaryKey
	NotNull      = core.NotNull
	Nullable     = core.Nullable
	Named        = core.Named
	Default      = core.Default
	Unique       = core.Unique
	Indexed      = core.Indexed
	TZ           = core.TZ
	Aka          = core.Aka

	// Expression builders
	And   = core.And
	Or    = core.Or
	Raw   = core.Raw
	Fn    = core.Fn
	Count = core.Count

	// Loggers and tracers
	NewSlogAdapter   = logger.NewSlogAdapter
	NewLogrusAdapter = logger.NewLogrusAdapter
	NewOtelTracer    = tracer.NewOtelTracer
)

// Expression constants.
var (
	// CountAll is count(1).
	CountAll = core.CountAll
	// Now is the server clock, NOW().
	Now = core.Now
	// Null renders a literal null.
	Null = core.Null
)

// Errors.
var (
	ErrMultiplePrimaryKeys   = core.ErrMultiplePrimaryKeys
	ErrTimezoneNotDatetime   = core.ErrTimezoneNotDatetime
	ErrColumnReused          = core.ErrColumnReused
	ErrDuplicateColumn       = core.ErrDuplicateColumn
	ErrForeignColumn         = core.ErrForeignColumn
	ErrMixedSelect           = core.ErrMixedSelect
	ErrUnaliasedSubquery     = core.ErrUnaliasedSubquery
	ErrUnknownColumn         = core.ErrUnknownColumn
	ErrUnreachableForeignKey = core.ErrUnreachableForeignKey
	ErrNothingToUpdate       = core.ErrNothingToUpdate
	ErrNoPrimaryKey          = core.ErrNoPrimaryKey
	ErrNoDatabase            = core.ErrNoDatabase
	ErrDialectDetection      = core.ErrDialectDetection
	ErrUnsupportedDialect    = core.ErrUnsupportedDialect
	ErrConnectionClosed      = core.ErrConnectionClosed
	ErrAlreadyRegistered     = dialects.ErrAlreadyRegistered
	ErrAmbiguousTable        = core.ErrAmbiguousTable
	ErrTableNotInQuery       = core.ErrTableNotInQuery
	ErrExplainUnsupported    = analyzer.ErrUnsupported
	ErrAnalyzeUnsupported    = analyzer.ErrAnalyzeUnsupported
)
