package core

import (
	"fmt"
	"strings"

	"github.com/coregx/dqo/internal/dialects"
)

// Kind is the declared value type of a column.
type Kind uint8

// Column kinds. Any kind may be wrapped with ArrayOf.
const (
	String Kind = iota + 1
	Int
	Float
	Bool
	Date
	DateTime
	UUID
)

const arrayFlag Kind = 0x80

// ArrayOf returns the array kind of k.
func ArrayOf(k Kind) Kind { return k | arrayFlag }

// IsArray reports whether k was built with ArrayOf.
func (k Kind) IsArray() bool { return k&arrayFlag != 0 }

// Elem returns the element kind of an array kind, or k itself.
func (k Kind) Elem() Kind { return k &^ arrayFlag }

func (k Kind) String() string {
	if k.IsArray() {
		return k.Elem().String() + "[]"
	}
	switch k {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case Date:
		return "date"
	case DateTime:
		return "datetime"
	case UUID:
		return "uuid"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Column is a column of a Table. Columns are created with NewColumn and become usable in
// expressions once the table is defined.
type Column struct {
	operand

	name       string
	dbName     string
	kind       Kind
	nullable   bool
	nullSet    bool
	def        interface{}
	hasDefault bool
	primaryKey bool
	unique     bool
	index      bool
	tz         bool
	aka        []string

	table *Table
	ref   *Column
}

// ColumnOption configures a Column.
type ColumnOption func(*Column)

// PrimaryKey marks the column as the table's primary key.
func PrimaryKey() ColumnOption { return func(c *Column) { c.primaryKey = true } }

// NotNull forbids nulls.
func NotNull() ColumnOption {
	return func(c *Column) {
		c.nullable = false
		c.nullSet = true
	}
}

// Nullable allows nulls. This is the default for non primary key columns.
func Nullable() ColumnOption {
	return func(c *Column) {
		c.nullable = true
		c.nullSet = true
	}
}

// Named overrides the database column name.
func Named(name string) ColumnOption { return func(c *Column) { c.dbName = name } }

// Default sets the column default. v may be a literal or an Expression such as Now.
func Default(v interface{}) ColumnOption {
	return func(c *Column) {
		c.def = v
		c.hasDefault = true
	}
}

// Unique adds a single-column unique index.
func Unique() ColumnOption { return func(c *Column) { c.unique = true } }

// Indexed adds a single-column index.
func Indexed() ColumnOption { return func(c *Column) { c.index = true } }

// TZ stores datetimes with their time zone. Only valid on DateTime columns.
func TZ() ColumnOption { return func(c *Column) { c.tz = true } }

// Aka lists previous names of the column, used to detect renames.
func Aka(names ...string) ColumnOption {
	return func(c *Column) { c.aka = append(c.aka, names...) }
}

// NewColumn creates a column descriptor of the given kind.
//
// Example:
//
//	dqo.NewColumn(dqo.Int, dqo.PrimaryKey())
//	dqo.NewColumn(dqo.DateTime, dqo.Default(dqo.Now), dqo.TZ())
func NewColumn(kind Kind, opts ...ColumnOption) *Column {
	c := &Column{kind: kind, nullable: true}
	c.self = c
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build renders the column reference, prefixed by the table alias when the query
// registered one.
func (c *Column) Build(d *dialects.Dialect, st *Statement) {
	if c.table == nil {
		st.Write(d.Term(c.dbName))
		return
	}
	st.Reference(d, c.table, c.dbName)
}

// Name returns the attribute name used for row values.
func (c *Column) Name() string { return c.name }

// DBName returns the database column name.
func (c *Column) DBName() string { return c.dbName }

// Kind returns the column kind.
func (c *Column) Kind() Kind { return c.kind }

// Table returns the owning table.
func (c *Column) Table() *Table { return c.table }

// Nullable reports whether the column accepts nulls.
func (c *Column) Nullable() bool { return c.nullable }

// Default returns the declared default.
func (c *Column) Default() (interface{}, bool) { return c.def, c.hasDefault }

// IsPrimaryKey reports whether the column is part of the primary key.
func (c *Column) IsPrimaryKey() bool {
	if c.table == nil {
		return c.primaryKey
	}
	for _, pk := range c.table.pk {
		if pk == c {
			return true
		}
	}
	return false
}

// TZ reports whether datetimes keep their time zone.
func (c *Column) TZ() bool { return c.tz }

// Aka returns the previous names of the column.
func (c *Column) Aka() []string { return c.aka }

// References returns the referenced column when c was generated for a foreign key.
func (c *Column) References() *Column { return c.ref }

// As aliases the column in a select list.
func (c *Column) As(alias string) *Aliasing {
	return &Aliasing{expr: c, alias: alias}
}

func (c *Column) String() string {
	if c.table == nil {
		return c.dbName
	}
	return c.table.dbName + "." + c.dbName
}

func (c *Column) bind(t *Table, name string) error {
	if c.table != nil {
		return fmt.Errorf("%w: %s is on %s", ErrColumnReused, name, c.table.name)
	}
	if c.tz && c.kind != DateTime {
		return fmt.Errorf("%w: %s", ErrTimezoneNotDatetime, name)
	}
	c.table = t
	c.name = name
	if c.dbName == "" {
		c.dbName = strings.ToLower(name)
	}
	return nil
}

// Aliasing renders "<expr> as <alias>" in a select list.
type Aliasing struct {
	expr  Expression
	alias string
}

// Build renders the aliased expression.
func (a *Aliasing) Build(d *dialects.Dialect, st *Statement) {
	a.expr.Build(d, st)
	st.Write(" as ", d.Term(a.alias))
}

// Alias returns the alias.
func (a *Aliasing) Alias() string { return a.alias }
