package core

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/coregx/dqo/internal/util"
)

// Values maps column attribute names to values.
type Values map[string]interface{}

// Row is one record of a table. Rows loaded from the database track which values were
// changed since, so Update writes only those. New rows are inserted by Save.
//
// Example:
//
//	row, err := Something.All().Where(Something.C("col1").Eq(1)).First(ctx)
//	row.Set("col2", "x")
//	err = row.Save(ctx)
type Row struct {
	table   *Table
	values  Values
	related map[string]*Row
	dirty   map[string]struct{}
	isNew   bool
	db      *Database
}

func newRow(t *Table, isNew bool) *Row {
	return &Row{
		table:  t,
		values: make(Values),
		dirty:  make(map[string]struct{}),
		isNew:  isNew,
	}
}

// NewFrom returns an unsaved row built from a struct's db tags (see StructToMap rules:
// db:"name", db:"-", db:"name,omitempty"). Fields that are not columns are ignored.
func (t *Table) NewFrom(v interface{}) (*Row, error) {
	m, err := util.StructToMap(v)
	if err != nil {
		return nil, WrapError(err, "dqo: new row")
	}
	r := newRow(t, true)
	for _, c := range t.columns {
		if val, ok := m[c.name]; ok {
			r.Set(c.name, val)
		} else if val, ok := m[c.dbName]; ok {
			r.Set(c.name, val)
		}
	}
	return r, nil
}

// Table returns the row's table.
func (r *Row) Table() *Table { return r.table }

// Get returns the value of a column attribute, nil when unset.
func (r *Row) Get(name string) interface{} { return r.values[name] }

// Lookup returns the value of a column attribute and whether it is set.
func (r *Row) Lookup(name string) (interface{}, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Set assigns a value and marks the attribute dirty unless it already held v.
func (r *Row) Set(name string, v interface{}) {
	if old, ok := r.values[name]; ok && reflect.DeepEqual(old, v) {
		return
	}
	r.values[name] = v
	r.dirty[name] = struct{}{}
}

// Values returns a copy of the row values.
func (r *Row) Values() Values {
	c := make(Values, len(r.values))
	for k, v := range r.values {
		c[k] = v
	}
	return c
}

// Related returns the row joined through the foreign key name by Plus, nil when the
// join found nothing.
func (r *Row) Related(fk string) *Row { return r.related[fk] }

// IsNew reports whether the row has not been stored yet.
func (r *Row) IsNew() bool { return r.isNew }

// Dirty returns the changed attribute names in column order.
func (r *Row) Dirty() []string {
	var names []string
	for _, c := range r.table.columns {
		if _, ok := r.dirty[c.name]; ok {
			names = append(names, c.name)
		}
	}
	return names
}

// Bind sets the database used by the row's persistence methods.
func (r *Row) Bind(db *Database) *Row {
	r.db = db
	return r
}

// Decode copies the row values into a struct. Fields are matched by their db tag, or by
// name when untagged.
func (r *Row) Decode(out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "db",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00")),
	})
	if err != nil {
		return WrapError(err, "dqo: decode row")
	}
	return WrapError(dec.Decode(map[string]interface{}(r.values)), "dqo: decode row")
}

func (r *Row) query() *Query {
	q := r.table.All()
	if r.db != nil {
		q = q.Bind(r.db)
	}
	return q
}

func (r *Row) pkCondition() (Expression, error) {
	pk := r.table.pk
	if len(pk) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPrimaryKey, r.table.name)
	}
	conds := make([]Expression, len(pk))
	for i, c := range pk {
		conds[i] = c.Eq(r.values[c.name])
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return And(conds...), nil
}

// Save inserts a new row or updates the dirty columns of a stored one.
func (r *Row) Save(ctx context.Context) error {
	if r.isNew {
		return r.Insert(ctx)
	}
	return r.Update(ctx)
}

// Insert stores the row and assigns the returned primary key.
func (r *Row) Insert(ctx context.Context) error {
	return r.insert(ctx, syncMode)
}

func (r *Row) insert(ctx context.Context, m execMode) error {
	key, err := r.query().insert(ctx, m, r.values)
	if err != nil {
		return err
	}
	r.assignKey(key)
	r.isNew = false
	r.dirty = make(map[string]struct{})
	return nil
}

func (r *Row) assignKey(key interface{}) {
	if key == nil {
		return
	}
	pk := r.table.pk
	if len(pk) == 1 {
		r.values[pk[0].name] = key
		return
	}
	if parts, ok := key.([]interface{}); ok && len(parts) == len(pk) {
		for i, c := range pk {
			r.values[c.name] = parts[i]
		}
	}
}

// Update writes the dirty columns, matching the row by primary key.
func (r *Row) Update(ctx context.Context) error {
	return r.update(ctx, syncMode)
}

func (r *Row) update(ctx context.Context, m execMode) error {
	cond, err := r.pkCondition()
	if err != nil {
		return err
	}
	dirty := r.Dirty()
	if len(dirty) == 0 {
		return nil
	}
	set := make(Values, len(dirty))
	for _, name := range dirty {
		set[name] = r.values[name]
	}
	if _, err := r.query().Where(cond).Set(set).update(ctx, m); err != nil {
		return err
	}
	r.dirty = make(map[string]struct{})
	return nil
}

// Delete removes the row, matching it by primary key. The row may be inserted again.
func (r *Row) Delete(ctx context.Context) error {
	return r.delete(ctx, syncMode)
}

func (r *Row) delete(ctx context.Context, m execMode) error {
	cond, err := r.pkCondition()
	if err != nil {
		return err
	}
	if _, err := r.query().Where(cond).delete(ctx, m); err != nil {
		return err
	}
	r.isNew = true
	for k := range r.values {
		r.dirty[k] = struct{}{}
	}
	return nil
}

// SaveAsync is the asynchronous Save.
func (r *Row) SaveAsync(ctx context.Context) *Future[*Row] {
	return goFuture(ctx, func(ctx context.Context) (*Row, error) {
		if r.isNew {
			return r, r.insert(ctx, asyncMode)
		}
		return r, r.update(ctx, asyncMode)
	})
}

// InsertAsync is the asynchronous Insert.
func (r *Row) InsertAsync(ctx context.Context) *Future[*Row] {
	return goFuture(ctx, func(ctx context.Context) (*Row, error) {
		return r, r.insert(ctx, asyncMode)
	})
}

// UpdateAsync is the asynchronous Update.
func (r *Row) UpdateAsync(ctx context.Context) *Future[*Row] {
	return goFuture(ctx, func(ctx context.Context) (*Row, error) {
		return r, r.update(ctx, asyncMode)
	})
}

// DeleteAsync is the asynchronous Delete.
func (r *Row) DeleteAsync(ctx context.Context) *Future[*Row] {
	return goFuture(ctx, func(ctx context.Context) (*Row, error) {
		return r, r.delete(ctx, asyncMode)
	})
}

// String renders "<Something col1=1 col2=nil>" with set values in column order.
func (r *Row) String() string {
	var b strings.Builder
	b.WriteString("<")
	b.WriteString(r.table.name)
	for _, c := range r.table.columns {
		v, ok := r.values[c.name]
		if !ok {
			continue
		}
		b.WriteString(" ")
		b.WriteString(c.name)
		b.WriteString("=")
		b.WriteString(formatValue(v))
	}
	b.WriteString(">")
	return b.String()
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
