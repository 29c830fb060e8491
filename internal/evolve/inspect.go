package evolve

import (
	"context"
	"errors"
	"fmt"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/sqlite"

	"github.com/coregx/dqo/internal/core"
	"github.com/coregx/dqo/internal/dialects"
)

// Schema is the live schema reported by an Inspector.
type Schema struct {
	// Tables maps table names to their column names in ordinal order.
	Tables map[string][]string
	// Columns is false when the inspector reports table names only. Column changes are
	// skipped then.
	Columns bool
}

func newSchema(columns bool) *Schema {
	return &Schema{Tables: make(map[string][]string), Columns: columns}
}

// Inspector reads the live schema through a connection.
type Inspector interface {
	Inspect(ctx context.Context, c *core.Connection) (*Schema, error)
}

// CatalogInspector queries the backend's system catalog: pg_catalog and
// information_schema on PostgreSQL, sqlite_master on SQLite.
type CatalogInspector struct {
	// Schema is the PostgreSQL schema to inspect, "public" when empty.
	Schema string
	// TablesOnly skips the column query.
	TablesOnly bool
}

type catalogQueries struct {
	tables  string
	columns string
	args    []interface{}
}

func (ci CatalogInspector) queries(b *dialects.Backend) (catalogQueries, error) {
	switch {
	case b.Is(dialects.Postgres):
		schema := ci.Schema
		if schema == "" {
			schema = "public"
		}
		d := b.ForQuery()
		p := d.Arg()
		return catalogQueries{
			tables:  "select tablename from pg_catalog.pg_tables where schemaname=" + p + " order by tablename",
			columns: "select table_name, column_name from information_schema.columns where table_schema=" + p + " order by table_name, ordinal_position",
			args:    []interface{}{schema},
		}, nil
	case b.Is(dialects.SQLite):
		return catalogQueries{
			tables: "select name from sqlite_master where type='table' and name not like 'sqlite_%' order by name",
			columns: "select m.name, p.name from sqlite_master m join pragma_table_info(m.name) p " +
				"where m.type='table' and m.name not like 'sqlite_%' order by m.name, p.cid",
		}, nil
	}
	return catalogQueries{}, fmt.Errorf("%w: cannot inspect %s", core.ErrUnsupportedDialect, b)
}

// Inspect implements Inspector.
func (ci CatalogInspector) Inspect(ctx context.Context, c *core.Connection) (_ *Schema, err error) {
	q, err := ci.queries(c.Dialect())
	if err != nil {
		return nil, err
	}
	s := newSchema(!ci.TablesOnly)

	rows, err := c.Fetch(ctx, q.tables, q.args...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			break
		}
		s.Tables[name] = nil
	}
	if err = errors.Join(err, rows.Err(), rows.Close()); err != nil || ci.TablesOnly {
		return s, err
	}

	rows, err = c.Fetch(ctx, q.columns, q.args...)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var table, column string
		if err = rows.Scan(&table, &column); err != nil {
			break
		}
		if _, ok := s.Tables[table]; ok {
			s.Tables[table] = append(s.Tables[table], column)
		}
	}
	return s, errors.Join(err, rows.Err(), rows.Close())
}

// AtlasInspector reads the schema with ariga.io/atlas. It needs a database created over
// database/sql (Open or WrapDB) and queries the pool directly.
type AtlasInspector struct {
	// Schema is the schema to inspect: "public" on PostgreSQL, "main" on SQLite when empty.
	Schema string
}

// Inspect implements Inspector.
func (ai AtlasInspector) Inspect(ctx context.Context, c *core.Connection) (*Schema, error) {
	db := c.Database().SQLDB()
	if db == nil {
		return nil, errors.New("evolve: atlas inspection needs a database/sql pool")
	}

	var (
		drv    migrate.Driver
		err    error
		schema = ai.Schema
	)
	switch b := c.Dialect(); {
	case b.Is(dialects.Postgres):
		if schema == "" {
			schema = "public"
		}
		drv, err = postgres.Open(db)
	case b.Is(dialects.SQLite):
		if schema == "" {
			schema = "main"
		}
		drv, err = sqlite.Open(db)
	default:
		return nil, fmt.Errorf("%w: cannot inspect %s", core.ErrUnsupportedDialect, b)
	}
	if err != nil {
		return nil, core.WrapError(err, "evolve: open atlas driver")
	}

	found, err := drv.InspectSchema(ctx, schema, nil)
	if err != nil {
		return nil, core.WrapError(err, "evolve: inspect schema "+schema)
	}
	s := newSchema(true)
	for _, t := range found.Tables {
		cols := make([]string, 0, len(t.Columns))
		for _, col := range t.Columns {
			cols = append(cols, col.Name)
		}
		s.Tables[t.Name] = cols
	}
	return s, nil
}
