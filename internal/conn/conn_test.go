package conn

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/coregx/dqo/internal/dialects"
	"github.com/coregx/dqo/internal/tracer"
)

type logEntry struct {
	level string
	msg   string
	kv    map[string]any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) log(level, msg string, args []any) {
	kv := make(map[string]any)
	for i := 0; i+1 < len(args); i += 2 {
		kv[args[i].(string)] = args[i+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, kv: kv})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any) { l.log("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any) { l.log("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestSQLConn_ExecuteAndFetch(t *testing.T) {
	db, mock := newMock(t)
	log := &recordingLogger{}
	var events []Event
	src := NewSQLSource(db, Options{
		Database: "sqlite",
		Logger:   log,
		Hook:     func(_ context.Context, e Event) { events = append(events, e) },
	})
	ctx := context.Background()

	mock.ExpectExec("update users set password=? where id=?").
		WithArgs("hunter2", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select id,name from users where id=?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "ann"))

	c, err := src.Open(ctx)
	require.NoError(t, err)
	defer c.Close()
	assert.True(t, c.Autocommit())

	res, err := c.Execute(ctx, "update users set password=? where id=?", []interface{}{"hunter2", 1})
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := c.Fetch(ctx, "select id,name from users where id=?", []interface{}{1})
	require.NoError(t, err)
	require.True(t, rows.Next())
	var (
		id   int64
		name string
	)
	require.NoError(t, rows.Scan(&id, &name))
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "ann", name)
	assert.False(t, rows.Next())
	require.NoError(t, rows.Close())

	require.Len(t, log.entries, 2)
	assert.Equal(t, "statement executed", log.entries[0].msg)
	assert.Equal(t, "[***REDACTED***, 1]", log.entries[0].kv["params"])
	assert.Equal(t, int64(1), log.entries[0].kv["rows_affected"])
	assert.Equal(t, "sqlite", log.entries[0].kv["database"])

	require.Len(t, events, 2)
	assert.Equal(t, "UPDATE", events[0].Operation)
	assert.Equal(t, "SELECT", events[1].Operation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConn_ErrorIsLogged(t *testing.T) {
	db, mock := newMock(t)
	log := &recordingLogger{}
	src := NewSQLSource(db, Options{Logger: log})
	ctx := context.Background()

	mock.ExpectExec("drop table a").WillReturnError(errors.New("no such table: a"))

	c, err := src.Open(ctx)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Execute(ctx, "drop table a", nil)
	assert.EqualError(t, err, "no such table: a")
	require.Len(t, log.entries, 1)
	assert.Equal(t, "error", log.entries[0].level)
	assert.Equal(t, "statement failed", log.entries[0].msg)
}

func TestSQLConn_StmtCache(t *testing.T) {
	db, mock := newMock(t)
	src := NewSQLSource(db, Options{StmtCache: 8})
	ctx := context.Background()
	query := "insert into something (col1) values (?)"

	prep := mock.ExpectPrepare(query)
	prep.ExpectExec().WithArgs(1).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(2).WillReturnResult(sqlmock.NewResult(2, 1))

	c, err := src.Open(ctx)
	require.NoError(t, err)

	for _, v := range []int{1, 2} {
		res, err := c.Execute(ctx, query, []interface{}{v})
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		assert.Equal(t, int64(v), id)
	}
	require.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConn_Transaction(t *testing.T) {
	db, mock := newMock(t)
	src := NewSQLSource(db, Options{})
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("delete from something").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()

	c, err := src.Open(ctx)
	require.NoError(t, err)
	defer c.Close()

	tx, err := c.(Beginner).Begin(ctx)
	require.NoError(t, err)
	assert.False(t, tx.Autocommit())
	_, err = tx.Execute(ctx, "delete from something", nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	tx, err = c.(Beginner).Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, tx.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLConn_Dialect(t *testing.T) {
	db, _ := newMock(t)
	c, err := NewSQLSource(db, Options{}).Open(context.Background())
	require.NoError(t, err)
	defer c.Close()

	_, err = c.(Dialector).Dialect()
	assert.ErrorIs(t, err, dialects.ErrUnknownDriver)
}

func TestSQLConn_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	db, mock := newMock(t)
	src := NewSQLSource(db, Options{
		Database: "postgres",
		Tracer:   tracer.NewOtelTracer(tp.Tracer("dqo")),
	})
	ctx := context.Background()

	mock.ExpectQuery("select col1 from something").WillReturnRows(sqlmock.NewRows([]string{"col1"}))
	mock.ExpectExec("delete from something").WillReturnError(errors.New("locked"))

	c, err := src.Open(ctx)
	require.NoError(t, err)
	defer c.Close()

	rows, err := c.Fetch(ctx, "select col1 from something", nil)
	require.NoError(t, err)
	_ = rows.Close()
	_, err = c.Execute(ctx, "delete from something", nil)
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, tracer.SpanFetch, spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, tracer.SpanExecute, spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)

	attrs := make(map[string]interface{})
	for _, a := range spans[0].Attributes {
		attrs[string(a.Key)] = a.Value.AsInterface()
	}
	assert.Equal(t, "postgres", attrs["db.system"])
	assert.Equal(t, "something", attrs["db.table"])
}

func TestEcho(t *testing.T) {
	e := NewEcho()
	ctx := context.Background()

	c, err := e.Open(ctx)
	require.NoError(t, err)

	_, err = c.Execute(ctx, "delete from something where col1=?", []interface{}{1})
	require.NoError(t, err)
	rows, err := c.Fetch(ctx, "select col1 from something", nil)
	require.NoError(t, err)
	assert.False(t, rows.Next())

	assert.Equal(t, []Statement{
		{SQL: "delete from something where col1=?", Args: []interface{}{1}},
		{SQL: "select col1 from something", Args: []interface{}{}},
	}, e.History())

	last, ok := e.Last()
	require.True(t, ok)
	assert.Equal(t, "select col1 from something", last.SQL)

	b, err := c.(Dialector).Dialect()
	require.NoError(t, err)
	assert.Equal(t, dialects.Generic, b)

	tx, err := c.(Beginner).Begin(ctx)
	require.NoError(t, err)
	assert.False(t, tx.Autocommit())

	e.Reset()
	assert.Empty(t, e.History())
	_, ok = e.Last()
	assert.False(t, ok)
}

func TestUtility(t *testing.T) {
	assert.True(t, utility("create table a (id serial not null)"))
	assert.True(t, utility("  ALTER TABLE b add foreign key (a_id) references a (id)"))
	assert.True(t, utility("drop table a"))
	assert.False(t, utility("select 1"))
	assert.False(t, utility("insert into a default values"))
}
