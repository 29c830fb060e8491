package core

import (
	"errors"
	"fmt"

	"github.com/coregx/dqo/internal/dialects"
)

// Definition errors, returned by Define.
var (
	// ErrMultiplePrimaryKeys is returned when a table declares more than one primary key.
	ErrMultiplePrimaryKeys = errors.New("there can be only one primary key")
	// ErrTimezoneNotDatetime is returned when the tz flag is set on a non-datetime column.
	ErrTimezoneNotDatetime = errors.New("tz is only valid on datetime columns")
	// ErrColumnReused is returned when a column value is declared on two tables.
	ErrColumnReused = errors.New("column already belongs to a table")
	// ErrDuplicateColumn is returned when two columns of a table share a name.
	ErrDuplicateColumn = errors.New("duplicate column name")
	// ErrForeignColumn is returned when a primary key or index names a column of another table.
	ErrForeignColumn = errors.New("column does not belong to this table")
)

// Builder usage errors, recorded on the Query and returned when it is rendered or executed.
var (
	// ErrMixedSelect is returned when concrete columns and +/- modifiers are mixed in one Select.
	ErrMixedSelect = errors.New("cannot mix concrete columns with ascending/descending modifiers in select")
	// ErrUnaliasedSubquery is returned when a sub-query is joined without As.
	ErrUnaliasedSubquery = errors.New("sub-query joins require an alias")
	// ErrUnknownColumn is returned when a value names a column the table does not have.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrUnreachableForeignKey is returned by Plus when a foreign key cannot be attached to the join tree.
	ErrUnreachableForeignKey = errors.New("foreign key does not start at any table of the query")
	// ErrNothingToUpdate is returned when an update has no assignments.
	ErrNothingToUpdate = errors.New("update without assignments")
	// ErrAmbiguousTable is returned when a column's table was added to the query more than once.
	ErrAmbiguousTable = dialects.ErrAmbiguousTable
	// ErrTableNotInQuery is returned when a column's table is absent from a query that aliases its tables.
	ErrTableNotInQuery = dialects.ErrTableNotInQuery
)

// Execution-time errors.
var (
	// ErrNoPrimaryKey is returned when a row without primary key is updated or deleted.
	ErrNoPrimaryKey = errors.New("table has no primary key")
	// ErrNoDatabase is returned when a query has no database to run against.
	ErrNoDatabase = errors.New("no database bound to query, table or default")
	// ErrDialectDetection is returned when a Database cannot determine its dialect.
	ErrDialectDetection = errors.New("could not detect the database dialect, pass one explicitly with WithDialect")
	// ErrUnsupportedDialect is returned when an operation is not implemented for a dialect.
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
	// ErrConnectionClosed is returned when a closed Connection is used.
	ErrConnectionClosed = errors.New("connection is closed")
)

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}

// ExecError is returned for driver failures. It keeps the statement that failed.
type ExecError struct {
	SQL  string
	Args []interface{}
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("dqo: %s: %v", e.SQL, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

func execError(sql string, args []interface{}, err error) error {
	if err == nil {
		return nil
	}
	return &ExecError{SQL: sql, Args: args, Err: err}
}
