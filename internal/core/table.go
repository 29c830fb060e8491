package core

import (
	"fmt"
	"strings"

	"github.com/coregx/dqo/internal/util"
)

// Table is a defined table: ordered columns, primary key, foreign keys and indexes.
// Tables are created once with Define and are immutable afterwards.
type Table struct {
	name    string
	dbName  string
	aka     []string
	columns []*Column
	byName  map[string]*Column
	pk      []*Column
	fks     []*ForeignKey
	indexes []*Index

	db      *Database
	asyncDB *Database
}

// ForeignKey links generated columns of a table to the primary key (or any columns) of
// another table. A fake foreign key is usable in Plus joins but never emitted as DDL.
type ForeignKey struct {
	name    string
	table   *Table
	refs    []*Column
	columns []*Column
	fake    bool
}

// Name returns the foreign key attribute name.
func (fk *ForeignKey) Name() string { return fk.name }

// Table returns the table that owns the generated columns.
func (fk *ForeignKey) Table() *Table { return fk.table }

// Columns returns the generated local columns, in reference order.
func (fk *ForeignKey) Columns() []*Column { return fk.columns }

// References returns the referenced columns.
func (fk *ForeignKey) References() []*Column { return fk.refs }

// Target returns the referenced table.
func (fk *ForeignKey) Target() *Table { return fk.refs[0].table }

// Fake reports whether the key exists only for joins.
func (fk *ForeignKey) Fake() bool { return fk.fake }

func (fk *ForeignKey) String() string {
	return fk.table.dbName + "." + fk.name + " -> " + fk.Target().dbName
}

// Index is a table index.
type Index struct {
	table   *Table
	columns []*Column
	include []*Column
	unique  bool
	method  string
	name    string
}

// Table returns the indexed table.
func (ix *Index) Table() *Table { return ix.table }

// Columns returns the indexed columns.
func (ix *Index) Columns() []*Column { return ix.columns }

// Include returns the covering columns.
func (ix *Index) Include() []*Column { return ix.include }

// Unique reports whether the index is unique.
func (ix *Index) Unique() bool { return ix.unique }

// Method returns the access method ("hash", "gin", ...) or "".
func (ix *Index) Method() string { return ix.method }

// Name returns the explicit index name or "".
func (ix *Index) Name() string { return ix.name }

// TableOption configures Define.
type TableOption interface {
	apply(*tableSpec)
}

type tableOptionFunc func(*tableSpec)

func (f tableOptionFunc) apply(s *tableSpec) { f(s) }

type member struct {
	name string
	col  *Column
	fk   *ForeignKeySpec
}

type tableSpec struct {
	dbName  string
	aka     []string
	members []member
	pks     [][]*Column
	indexes []*IndexSpec
	db      *Database
	asyncDB *Database
}

// Col adds a column under an attribute name.
func Col(name string, col *Column) TableOption {
	return tableOptionFunc(func(s *tableSpec) {
		s.members = append(s.members, member{name: name, col: col})
	})
}

// PrimaryKeyOf declares a (composite) primary key.
func PrimaryKeyOf(cols ...*Column) TableOption {
	return tableOptionFunc(func(s *tableSpec) { s.pks = append(s.pks, cols) })
}

// TableName overrides the database table name.
func TableName(name string) TableOption {
	return tableOptionFunc(func(s *tableSpec) { s.dbName = name })
}

// TableAka lists previous names of the table, used to detect renames.
func TableAka(names ...string) TableOption {
	return tableOptionFunc(func(s *tableSpec) { s.aka = append(s.aka, names...) })
}

// BindDB sets the table's default synchronous database.
func BindDB(db *Database) TableOption {
	return tableOptionFunc(func(s *tableSpec) { s.db = db })
}

// BindAsyncDB sets the table's default asynchronous database.
func BindAsyncDB(db *Database) TableOption {
	return tableOptionFunc(func(s *tableSpec) { s.asyncDB = db })
}

// ForeignKeySpec declares a foreign key. It is a TableOption.
type ForeignKeySpec struct {
	name string
	refs []*Column
	fake bool
}

// ForeignKeyTo declares a foreign key named name referencing refs. For every referenced
// column the table gets a not null column "<name>_<ref>" of the referenced kind, placed
// where the foreign key is declared.
//
// Example:
//
//	dqo.ForeignKeyTo("a", A.C("id"))   // column a_id
func ForeignKeyTo(name string, refs ...*Column) *ForeignKeySpec {
	return &ForeignKeySpec{name: name, refs: refs}
}

// Fake marks the foreign key as join-only.
func (f *ForeignKeySpec) Fake() *ForeignKeySpec {
	c := *f
	c.fake = true
	return &c
}

func (f *ForeignKeySpec) apply(s *tableSpec) {
	s.members = append(s.members, member{name: f.name, fk: f})
}

// IndexSpec declares an index. It is a TableOption.
type IndexSpec struct {
	columns []*Column
	include []*Column
	unique  bool
	method  string
	name    string
}

// IndexOn declares an index over cols.
func IndexOn(cols ...*Column) *IndexSpec {
	return &IndexSpec{columns: cols}
}

// Unique makes the index unique.
func (ix *IndexSpec) Unique() *IndexSpec {
	c := *ix
	c.unique = true
	return &c
}

// Using sets the access method.
func (ix *IndexSpec) Using(method string) *IndexSpec {
	c := *ix
	c.method = method
	return &c
}

// Include adds covering columns.
func (ix *IndexSpec) Include(cols ...*Column) *IndexSpec {
	c := *ix
	c.include = append(append([]*Column(nil), ix.include...), cols...)
	return &c
}

// Named sets an explicit index name.
func (ix *IndexSpec) Named(name string) *IndexSpec {
	c := *ix
	c.name = name
	return &c
}

func (ix *IndexSpec) apply(s *tableSpec) {
	s.indexes = append(s.indexes, ix)
}

// Define builds a table. name is the declared (CamelCase) name, the database name is its
// snake_case form unless TableName is given. Columns keep declaration order.
//
// Example:
//
//	Something, err := dqo.Define("Something",
//		dqo.Col("col1", dqo.NewColumn(dqo.Int, dqo.PrimaryKey())),
//		dqo.Col("col2", dqo.NewColumn(dqo.String)),
//	)
func Define(name string, opts ...TableOption) (*Table, error) {
	var s tableSpec
	for _, opt := range opts {
		opt.apply(&s)
	}

	t := &Table{
		name:    name,
		dbName:  s.dbName,
		aka:     s.aka,
		byName:  make(map[string]*Column),
		db:      s.db,
		asyncDB: s.asyncDB,
	}
	if t.dbName == "" {
		t.dbName = util.TableName(name)
	}

	for _, m := range s.members {
		if m.fk != nil {
			if err := t.addForeignKey(m.fk); err != nil {
				return nil, err
			}
			continue
		}
		if err := t.addColumn(m.name, m.col); err != nil {
			return nil, err
		}
	}

	if err := t.resolvePrimaryKey(s.pks); err != nil {
		return nil, err
	}
	if err := t.resolveIndexes(s.indexes); err != nil {
		return nil, err
	}

	if t.db != nil {
		t.db.register(t)
	}
	if t.asyncDB != nil && t.asyncDB != t.db {
		t.asyncDB.register(t)
	}
	return t, nil
}

// MustDefine is like Define but panics on error. It suits package-level table variables.
func MustDefine(name string, opts ...TableOption) *Table {
	t, err := Define(name, opts...)
	if err != nil {
		panic(fmt.Sprintf("dqo: define %s: %v", name, err))
	}
	return t
}

func (t *Table) addColumn(name string, col *Column) error {
	if err := col.bind(t, name); err != nil {
		return err
	}
	if _, dup := t.byName[name]; dup {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateColumn, t.name, name)
	}
	t.columns = append(t.columns, col)
	t.byName[name] = col
	return nil
}

func (t *Table) addForeignKey(spec *ForeignKeySpec) error {
	if len(spec.refs) == 0 {
		return fmt.Errorf("dqo: foreign key %s.%s references no columns", t.name, spec.name)
	}
	fk := &ForeignKey{name: spec.name, table: t, refs: spec.refs, fake: spec.fake}
	for _, ref := range spec.refs {
		if ref.table == nil {
			return fmt.Errorf("dqo: foreign key %s.%s references an unbound column", t.name, spec.name)
		}
		col := NewColumn(ref.kind, NotNull())
		col.ref = ref
		if err := t.addColumn(spec.name+"_"+ref.dbName, col); err != nil {
			return err
		}
		fk.columns = append(fk.columns, col)
	}
	t.fks = append(t.fks, fk)
	return nil
}

func (t *Table) resolvePrimaryKey(explicit [][]*Column) error {
	var implicit []*Column
	for _, c := range t.columns {
		if c.primaryKey {
			implicit = append(implicit, c)
		}
	}
	declared := len(explicit)
	if len(implicit) > 0 {
		declared += len(implicit)
	}
	if declared > 1 {
		return fmt.Errorf("%w: %s", ErrMultiplePrimaryKeys, t.name)
	}
	switch {
	case len(implicit) == 1:
		t.pk = implicit
	case len(explicit) == 1:
		for _, c := range explicit[0] {
			if c.table != t {
				return fmt.Errorf("%w: primary key %s on %s", ErrForeignColumn, c, t.name)
			}
		}
		t.pk = explicit[0]
	}
	for _, c := range t.pk {
		c.nullable = false
		c.nullSet = true
	}
	return nil
}

func (t *Table) resolveIndexes(specs []*IndexSpec) error {
	for _, c := range t.columns {
		if c.unique || c.index {
			t.indexes = append(t.indexes, &Index{table: t, columns: []*Column{c}, unique: c.unique})
		}
	}
	for _, spec := range specs {
		for _, c := range append(append([]*Column(nil), spec.columns...), spec.include...) {
			if c.table != t {
				return fmt.Errorf("%w: index column %s on %s", ErrForeignColumn, c, t.name)
			}
		}
		t.indexes = append(t.indexes, &Index{
			table:   t,
			columns: spec.columns,
			include: spec.include,
			unique:  spec.unique,
			method:  spec.method,
			name:    spec.name,
		})
	}
	return nil
}

// Name returns the declared table name.
func (t *Table) Name() string { return t.name }

// DBName returns the database table name.
func (t *Table) DBName() string { return t.dbName }

// Aka returns the previous names of the table.
func (t *Table) Aka() []string { return t.aka }

// Columns returns the columns in declaration order.
func (t *Table) Columns() []*Column { return t.columns }

// Column returns the column with the given attribute name.
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.byName[name]
	return c, ok
}

// C returns the column with the given attribute name and panics when it does not exist.
func (t *Table) C(name string) *Column {
	c, ok := t.byName[name]
	if !ok {
		panic(fmt.Sprintf("dqo: table %s has no column %q", t.name, name))
	}
	return c
}

// PrimaryKey returns the primary key columns, nil when the table has none.
func (t *Table) PrimaryKey() []*Column { return t.pk }

// ForeignKeys returns the foreign keys in declaration order.
func (t *Table) ForeignKeys() []*ForeignKey { return t.fks }

// FK returns the foreign key with the given name and panics when it does not exist.
func (t *Table) FK(name string) *ForeignKey {
	for _, fk := range t.fks {
		if fk.name == name {
			return fk
		}
	}
	panic(fmt.Sprintf("dqo: table %s has no foreign key %q", t.name, name))
}

// Indexes returns the table indexes.
func (t *Table) Indexes() []*Index { return t.indexes }

// DB returns the table's default synchronous database.
func (t *Table) DB() *Database { return t.db }

// AsyncDB returns the table's default asynchronous database.
func (t *Table) AsyncDB() *Database { return t.asyncDB }

// All returns a new query selecting every column of the table.
func (t *Table) All() *Query {
	return newQuery(t)
}

// New returns an unsaved row holding values.
func (t *Table) New(values Values) *Row {
	r := newRow(t, true)
	for k, v := range values {
		r.Set(k, v)
	}
	return r
}

func (t *Table) String() string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.dbName
	}
	return t.dbName + "(" + strings.Join(names, ",") + ")"
}

func (t *Table) hasColumn(c *Column) bool {
	return c != nil && c.table == t
}
