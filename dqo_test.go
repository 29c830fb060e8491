package dqo_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/coregx/dqo"
)

type noTables struct{}

func (noTables) Inspect(context.Context, *dqo.Connection) (*dqo.Schema, error) {
	return &dqo.Schema{Tables: map[string][]string{}, Columns: true}, nil
}

func TestEcho_Facade(t *testing.T) {
	ctx := context.Background()
	db := dqo.NewEcho()
	s := dqo.MustDefine("Something",
		dqo.Col("col1", dqo.NewColumn(dqo.Int, dqo.PrimaryKey())),
		dqo.Col("col2", dqo.NewColumn(dqo.String)),
		dqo.BindDB(db),
	)

	_, err := s.All().Where(dqo.Or(s.C("col1").Eq(1), s.C("col2").IsNull())).All(ctx)
	require.NoError(t, err)
	_, err = s.All().WhereEq(dqo.Values{"col1": 2}).Delete(ctx)
	require.NoError(t, err)

	assert.Equal(t, []dqo.EchoStatement{
		{SQL: "select col1,col2 from something where col1=? or col2 is null", Args: []interface{}{1}},
		{SQL: "delete from something where col1=?", Args: []interface{}{2}},
	}, db.History())

	db.ResetHistory()
	assert.Empty(t, db.History())
}

func TestDiff_Facade(t *testing.T) {
	db := dqo.NewEcho(dqo.WithDialect(dqo.Postgres))
	dqo.MustDefine("Something",
		dqo.Col("col1", dqo.NewColumn(dqo.Int, dqo.PrimaryKey())),
		dqo.Col("col2", dqo.NewColumn(dqo.String)),
		dqo.BindDB(db),
	)

	changes, err := dqo.Diff(context.Background(), db, dqo.WithInspector(noTables{}))
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "create table something (col1 serial not null, col2 text, primary key (col1))", changes[0].SQL)
	assert.Empty(t, db.History())
}

func TestOpenConfig_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &dqo.Config{
		Driver:       "sqlite",
		DSN:          "file:" + filepath.Join(t.TempDir(), "dqo.db"),
		MaxOpenConns: 1,
	}
	cfg.Log.Adapter = "none"
	cfg.Log.SensitiveFields = []string{"password"}

	db, err := dqo.OpenConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.True(t, db.Dialect().Is(dqo.SQLite))

	accounts := dqo.MustDefine("Account",
		dqo.Col("id", dqo.NewColumn(dqo.Int, dqo.PrimaryKey())),
		dqo.Col("email", dqo.NewColumn(dqo.String, dqo.NotNull())),
		dqo.Col("password", dqo.NewColumn(dqo.String)),
		dqo.BindDB(db),
	)
	changes, err := dqo.Evolve(ctx, db)
	require.NoError(t, err)
	assert.Len(t, changes, 1)

	_, err = accounts.All().InsertMany(ctx, []dqo.Values{
		{"id": 1, "email": "a@example.com", "password": "x"},
		{"id": 2, "email": "b@example.com", "password": "y"},
	})
	require.NoError(t, err)

	n, err := accounts.All().Where(accounts.C("email").Like("%@example.com")).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	again, err := dqo.Diff(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestOpenConfig_Invalid(t *testing.T) {
	_, err := dqo.OpenConfig(context.Background(), &dqo.Config{DSN: "x"})
	assert.ErrorIs(t, err, dqo.ErrNoDriver)

	_, err = dqo.OpenConfig(context.Background(), &dqo.Config{Driver: "sqlite"})
	assert.ErrorIs(t, err, dqo.ErrNoDSN)
}

func ExampleDiff() {
	db := dqo.NewEcho(dqo.WithDialect(dqo.Postgres))
	a := dqo.MustDefine("A",
		dqo.Col("id", dqo.NewColumn(dqo.Int, dqo.PrimaryKey())),
		dqo.BindDB(db),
	)
	dqo.MustDefine("B",
		dqo.Col("id", dqo.NewColumn(dqo.Int, dqo.PrimaryKey())),
		dqo.ForeignKeyTo("a", a.C("id")),
		dqo.BindDB(db),
	)

	changes, err := dqo.Diff(context.Background(), db, dqo.WithInspector(noTables{}))
	if err != nil {
		panic(err)
	}
	for _, c := range changes {
		fmt.Println(c.SQL)
	}
	// Output:
	// create table a (id serial not null, primary key (id))
	// create table b (id serial not null, a_id integer not null, primary key (id))
	// alter table b add foreign key (a_id) references a (id)
}
