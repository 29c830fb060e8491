package evolve

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coregx/dqo/internal/core"
	"github.com/coregx/dqo/internal/dialects"
	"github.com/coregx/dqo/internal/util"
)

// ddl renders the backend specific parts of schema statements.
type ddl interface {
	columnType(c *core.Column) (string, error)
	// writeDefault renders a column default after "default ".
	writeDefault(d *dialects.Dialect, st *core.Statement, def interface{}) error
	// inlineForeignKeys reports whether foreign keys go into create table.
	inlineForeignKeys() bool
	createIndex(d *dialects.Dialect, ix *core.Index) (string, error)
}

func ddlFor(b *dialects.Backend) (ddl, error) {
	switch {
	case b.Is(dialects.Postgres):
		return postgresDDL{}, nil
	case b.Is(dialects.SQLite):
		return sqliteDDL{}, nil
	}
	return nil, fmt.Errorf("%w: cannot evolve %s", core.ErrUnsupportedDialect, b)
}

// serialKey reports whether c is the single integer primary key of its table.
func serialKey(c *core.Column) bool {
	pk := c.Table().PrimaryKey()
	return len(pk) == 1 && pk[0] == c && c.Kind() == core.Int
}

type postgresDDL struct{}

func (postgresDDL) columnType(c *core.Column) (string, error) {
	if serialKey(c) {
		return "serial", nil
	}
	t, err := postgresType(c.Kind().Elem(), c.TZ())
	if err != nil {
		return "", fmt.Errorf("evolve: column %s: %w", c, err)
	}
	if c.Kind().IsArray() {
		return t + "[]", nil
	}
	return t, nil
}

func postgresType(k core.Kind, tz bool) (string, error) {
	switch k {
	case core.String:
		return "text", nil
	case core.Int:
		return "integer", nil
	case core.Float:
		return "real", nil
	case core.Bool:
		return "boolean", nil
	case core.Date:
		return "date", nil
	case core.DateTime:
		if tz {
			return "timestamp with time zone", nil
		}
		return "timestamp", nil
	case core.UUID:
		return "uuid", nil
	}
	return "", fmt.Errorf("no postgres type for %s", k)
}

func (postgresDDL) writeDefault(d *dialects.Dialect, st *core.Statement, def interface{}) error {
	if e, ok := def.(core.Expression); ok {
		e.Build(d, st)
		return st.Err()
	}
	st.Bind(d, def)
	return nil
}

func (postgresDDL) inlineForeignKeys() bool { return false }

func (postgresDDL) createIndex(d *dialects.Dialect, ix *core.Index) (string, error) {
	var b strings.Builder
	b.WriteString("create ")
	if ix.Unique() {
		b.WriteString("unique ")
	}
	b.WriteString("index ")
	if ix.Name() != "" {
		b.WriteString(d.Term(ix.Name()))
		b.WriteString(" ")
	}
	b.WriteString("on ")
	b.WriteString(d.Term(ix.Table().DBName()))
	if ix.Method() != "" {
		b.WriteString(" using ")
		b.WriteString(ix.Method())
	}
	b.WriteString(" (")
	b.WriteString(columnList(d, ix.Columns()))
	b.WriteString(")")
	if len(ix.Include()) > 0 {
		b.WriteString(" include (")
		b.WriteString(columnList(d, ix.Include()))
		b.WriteString(")")
	}
	return b.String(), nil
}

type sqliteDDL struct{}

func (sqliteDDL) columnType(c *core.Column) (string, error) {
	if c.Kind().IsArray() {
		return "", fmt.Errorf("evolve: column %s: sqlite has no array types", c)
	}
	switch c.Kind() {
	case core.String, core.UUID:
		return "text", nil
	case core.Int:
		return "integer", nil
	case core.Float:
		return "real", nil
	case core.Bool:
		return "boolean", nil
	case core.Date:
		return "date", nil
	case core.DateTime:
		return "timestamp", nil
	}
	return "", fmt.Errorf("evolve: column %s: no sqlite type for %s", c, c.Kind())
}

// SQLite rejects bound parameters in DDL, so plain defaults are written as literals.
func (sqliteDDL) writeDefault(d *dialects.Dialect, st *core.Statement, def interface{}) error {
	if f, ok := def.(*core.Function); ok && strings.EqualFold(f.Name(), "now") {
		st.Write("CURRENT_TIMESTAMP")
		return nil
	}
	if e, ok := def.(core.Expression); ok {
		var inner core.Statement
		e.Build(d, &inner)
		if err := inner.Err(); err != nil {
			return err
		}
		if len(inner.Args()) > 0 {
			return fmt.Errorf("evolve: sqlite default %q cannot take parameters", inner.SQL())
		}
		st.Write("(", inner.SQL(), ")")
		return nil
	}
	lit, err := sqliteLiteral(def)
	if err != nil {
		return err
	}
	st.Write(lit)
	return nil
}

func sqliteLiteral(v interface{}) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case time.Time:
		return "'" + x.Format(time.RFC3339Nano) + "'", nil
	case fmt.Stringer:
		return sqliteLiteral(x.String())
	}
	return "", fmt.Errorf("evolve: unsupported sqlite default %T", v)
}

func (sqliteDDL) inlineForeignKeys() bool { return true }

func (sqliteDDL) createIndex(d *dialects.Dialect, ix *core.Index) (string, error) {
	if ix.Method() != "" || len(ix.Include()) > 0 {
		return "", fmt.Errorf("evolve: sqlite indexes support neither methods nor included columns (table %s)", ix.Table().DBName())
	}
	name := ix.Name()
	if name == "" {
		name = indexName(ix)
	}
	var b strings.Builder
	b.WriteString("create ")
	if ix.Unique() {
		b.WriteString("unique ")
	}
	b.WriteString("index ")
	b.WriteString(d.Term(name))
	b.WriteString(" on ")
	b.WriteString(d.Term(ix.Table().DBName()))
	b.WriteString(" (")
	b.WriteString(columnList(d, ix.Columns()))
	b.WriteString(")")
	return b.String(), nil
}

func indexName(ix *core.Index) string {
	cols := make([]string, len(ix.Columns()))
	for i, c := range ix.Columns() {
		cols[i] = c.DBName()
	}
	return util.IndexName(ix.Table().DBName(), cols, ix.Unique())
}

func columnList(d *dialects.Dialect, cols []*core.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = d.Term(c.DBName())
	}
	return strings.Join(names, ",")
}

// columnDef writes "name type [not null] [default ...]".
func columnDef(g ddl, d *dialects.Dialect, st *core.Statement, c *core.Column) error {
	typ, err := g.columnType(c)
	if err != nil {
		return err
	}
	st.Write(d.Term(c.DBName()), " ", typ)
	if !c.Nullable() {
		st.Write(" not null")
	}
	if def, ok := c.Default(); ok {
		st.Write(" default ")
		if err := g.writeDefault(d, st, def); err != nil {
			return fmt.Errorf("evolve: column %s: %w", c, err)
		}
	}
	return nil
}

func foreignKeyClause(d *dialects.Dialect, fk *core.ForeignKey) string {
	return "foreign key (" + columnList(d, fk.Columns()) + ") references " +
		d.Term(fk.Target().DBName()) + " (" + columnList(d, fk.References()) + ")"
}

func createTable(g ddl, b *dialects.Backend, t *core.Table) (Change, error) {
	d := b.ForQuery()
	var st core.Statement
	st.Write("create table ", d.Term(t.DBName()), " (")
	for i, c := range t.Columns() {
		if i > 0 {
			st.Write(", ")
		}
		if err := columnDef(g, d, &st, c); err != nil {
			return Change{}, err
		}
	}
	if pk := t.PrimaryKey(); len(pk) > 0 {
		st.Write(", primary key (", columnList(d, pk), ")")
	}
	if g.inlineForeignKeys() {
		for _, fk := range t.ForeignKeys() {
			if !fk.Fake() {
				st.Write(", ", foreignKeyClause(d, fk))
			}
		}
	}
	st.Write(")")
	return Change{SQL: st.SQL(), Args: st.Args()}, nil
}

func addForeignKey(b *dialects.Backend, fk *core.ForeignKey) Change {
	d := b.ForQuery()
	return statement("alter table " + d.Term(fk.Table().DBName()) + " add " + foreignKeyClause(d, fk))
}

func addColumn(g ddl, b *dialects.Backend, c *core.Column) (Change, error) {
	d := b.ForQuery()
	var st core.Statement
	st.Write("alter table ", d.Term(c.Table().DBName()), " add column ")
	if err := columnDef(g, d, &st, c); err != nil {
		return Change{}, err
	}
	return Change{SQL: st.SQL(), Args: st.Args()}, nil
}

func statement(sql string) Change {
	return Change{SQL: sql, Args: []interface{}{}}
}

func renameTable(b *dialects.Backend, from, to string) Change {
	return statement("alter table " + b.Term(from) + " rename to " + b.Term(to))
}

func renameColumn(b *dialects.Backend, table, from, to string) Change {
	return statement("alter table " + b.Term(table) + " rename column " + b.Term(from) + " to " + b.Term(to))
}

func dropColumn(b *dialects.Backend, table, name string) Change {
	return statement("alter table " + b.Term(table) + " drop column " + b.Term(name))
}

func dropTable(b *dialects.Backend, name string) Change {
	return statement("drop table " + b.Term(name))
}
