// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"fmt"

	"github.com/coregx/dqo/internal/dialects"
)

type command int

const (
	cmdSelect command = iota
	cmdInsert
	cmdInsertMany
	cmdUpdate
	cmdDelete
)

func (c command) String() string {
	switch c {
	case cmdInsert, cmdInsertMany:
		return "insert"
	case cmdUpdate:
		return "update"
	case cmdDelete:
		return "delete"
	default:
		return "select"
	}
}

// JoinTarget is a table or an aliased sub-query.
type JoinTarget interface {
	joinTarget()
}

func (*Table) joinTarget() {}
func (*Query) joinTarget() {}

type joinClause struct {
	kind  string
	table *Table
	sub   *Query
	on    Expression
}

type assignment struct {
	col   *Column
	value interface{}
}

// Query is an immutable query description. Every builder method returns a new Query and
// leaves the receiver unchanged, so partial queries can be shared and extended freely.
//
// Builder misuse (unknown columns, mixed selects, unreachable foreign keys) is recorded on
// the returned Query and reported by Err, Render and every terminal operation.
type Query struct {
	table    *Table
	cmd      command
	selected []Expression
	conds    []Expression
	joins    []joinClause
	plus     *plusNode
	limit    int
	hasLimit bool
	orderBy  []Expression
	groupBy  []Expression
	sets     []assignment
	rows     []Values
	alias    string
	db       *Database
	conn     *Connection
	err      error
}

func newQuery(t *Table) *Query {
	sel := make([]Expression, len(t.columns))
	for i, c := range t.columns {
		sel[i] = c
	}
	return &Query{table: t, selected: sel}
}

func (q *Query) clone() *Query {
	c := *q
	return &c
}

func (q *Query) fail(err error) *Query {
	c := q.clone()
	if c.err == nil {
		c.err = err
	}
	return c
}

// appendExpr appends without sharing the backing array of the receiver's slice.
func appendExpr(s []Expression, items ...Expression) []Expression {
	out := make([]Expression, 0, len(s)+len(items))
	out = append(out, s...)
	return append(out, items...)
}

// Table returns the queried table.
func (q *Query) Table() *Table { return q.table }

// Err returns the first builder error.
func (q *Query) Err() error { return q.err }

// Select replaces the selection with concrete columns or functions, or adjusts the
// current selection: Ascending adds a column if absent, Descending removes it. When a
// call carries any removal its additions are ignored. Mixing concrete columns with
// modifiers in one call is an error. Select() with no arguments selects nothing.
func (q *Query) Select(items ...Expression) *Query {
	var modifiers, concrete int
	for _, item := range items {
		switch item.(type) {
		case *PosColumn, *NegColumn:
			modifiers++
		default:
			concrete++
		}
	}
	if modifiers > 0 && concrete > 0 {
		return q.fail(ErrMixedSelect)
	}

	c := q.clone()
	if modifiers == 0 {
		c.selected = appendExpr(nil, items...)
		return c
	}
	var adds, removes []Expression
	for _, item := range items {
		switch m := item.(type) {
		case *PosColumn:
			adds = append(adds, m.expr)
		case *NegColumn:
			removes = append(removes, m.expr)
		}
	}
	sel := appendExpr(nil, q.selected...)
	if len(removes) > 0 {
		for _, e := range removes {
			if i := indexOf(sel, e); i >= 0 {
				sel = append(sel[:i], sel[i+1:]...)
			}
		}
	} else {
		for _, e := range adds {
			if indexOf(sel, e) < 0 {
				sel = append(sel, e)
			}
		}
	}
	c.selected = sel
	return c
}

func indexOf(list []Expression, e Expression) int {
	for i, x := range list {
		if x == e {
			return i
		}
	}
	return -1
}

// Where adds conditions. All conditions of a query are joined with "and".
func (q *Query) Where(conds ...Expression) *Query {
	c := q.clone()
	c.conds = appendExpr(q.conds, conds...)
	return c
}

// WhereEq adds one equality condition per value, in column order.
func (q *Query) WhereEq(values Values) *Query {
	cols, err := q.table.orderedColumns(values)
	if err != nil {
		return q.fail(err)
	}
	conds := make([]Expression, len(cols))
	for i, col := range cols {
		conds[i] = col.Eq(values[col.name])
	}
	return q.Where(conds...)
}

// OrderBy sets the ordering, replacing any earlier OrderBy. Use Ascending and Descending
// for an explicit direction. Ordering only applies to selects and is ignored otherwise.
func (q *Query) OrderBy(items ...Expression) *Query {
	c := q.clone()
	c.orderBy = appendExpr(nil, items...)
	return c
}

// GroupBy sets the grouping columns.
func (q *Query) GroupBy(items ...Expression) *Query {
	c := q.clone()
	c.groupBy = appendExpr(nil, items...)
	return c
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	c := q.clone()
	c.limit = n
	c.hasLimit = true
	return c
}

// Top is an alias of Limit.
func (q *Query) Top(n int) *Query { return q.Limit(n) }

// Set adds assignments for Update. Later assignments to the same column win.
// Assignments render in column order.
func (q *Query) Set(values Values) *Query {
	cols, err := q.table.orderedColumns(values)
	if err != nil {
		return q.fail(err)
	}
	byCol := make(map[*Column]interface{}, len(q.sets)+len(cols))
	for _, a := range q.sets {
		byCol[a.col] = a.value
	}
	for _, col := range cols {
		byCol[col] = values[col.name]
	}
	c := q.clone()
	c.sets = nil
	for _, col := range q.table.columns {
		if v, ok := byCol[col]; ok {
			c.sets = append(c.sets, assignment{col: col, value: v})
		}
	}
	return c
}

// As names the query for use as a joined sub-query.
func (q *Query) As(alias string) *Query {
	c := q.clone()
	c.alias = alias
	return c
}

// Alias returns the name given by As.
func (q *Query) Alias() string { return q.alias }

// DBName implements dialects.Aliased for aliased sub-queries.
func (q *Query) DBName() string { return q.alias }

// Ref references a column of an aliased sub-query: "<alias>.<name>".
func (q *Query) Ref(name string) Expression {
	return &subRef{q: q, name: name}
}

type subRef struct {
	q    *Query
	name string
}

func (r *subRef) Build(d *dialects.Dialect, st *Statement) {
	st.Reference(d, r.q, r.name)
}

// Join adds an inner join on a table or aliased sub-query.
func (q *Query) Join(target JoinTarget, on Expression) *Query {
	return q.join("join", target, on)
}

// LeftJoin adds a left join.
func (q *Query) LeftJoin(target JoinTarget, on Expression) *Query {
	return q.join("left join", target, on)
}

// RightJoin adds a right join.
func (q *Query) RightJoin(target JoinTarget, on Expression) *Query {
	return q.join("right join", target, on)
}

// OuterJoin adds a full outer join.
func (q *Query) OuterJoin(target JoinTarget, on Expression) *Query {
	return q.join("full outer join", target, on)
}

func (q *Query) join(kind string, target JoinTarget, on Expression) *Query {
	jc := joinClause{kind: kind, on: on}
	switch t := target.(type) {
	case *Table:
		jc.table = t
	case *Query:
		if t.alias == "" {
			return q.fail(ErrUnaliasedSubquery)
		}
		jc.sub = t
	}
	c := q.clone()
	c.joins = make([]joinClause, 0, len(q.joins)+1)
	c.joins = append(append(c.joins, q.joins...), jc)
	return c
}

// Plus left-joins the targets of foreign keys and loads them into Row.Related.
// A key may start at the queried table or at any table already added by Plus.
//
// Example:
//
//	B.All().Plus(B.FK("a"), A.FK("c"))
func (q *Query) Plus(fks ...*ForeignKey) *Query {
	root := q.plus
	if root == nil {
		root = &plusNode{table: q.table}
	}
	root = root.copy()
	for _, fk := range fks {
		if !root.attach(fk) {
			return q.fail(fmt.Errorf("%w: %s", ErrUnreachableForeignKey, fk))
		}
	}
	c := q.clone()
	c.plus = root
	return c
}

// Bind sets the database the query runs on, ahead of the table and process defaults.
func (q *Query) Bind(db *Database) *Query {
	c := q.clone()
	c.db = db
	return c
}

// BindConn runs the query on an open connection.
func (q *Query) BindConn(conn *Connection) *Query {
	c := q.clone()
	c.conn = conn
	return c
}

// AsUpdate returns the query as an UPDATE statement using the Set assignments.
func (q *Query) AsUpdate() *Query {
	c := q.clone()
	c.cmd = cmdUpdate
	return c
}

// AsDelete returns the query as a DELETE statement.
func (q *Query) AsDelete() *Query {
	c := q.clone()
	c.cmd = cmdDelete
	return c
}

// AsInsert returns the query as an INSERT of one row.
func (q *Query) AsInsert(values Values) *Query {
	if _, err := q.table.orderedColumns(values); err != nil {
		return q.fail(err)
	}
	c := q.clone()
	c.cmd = cmdInsert
	c.rows = []Values{values}
	return c
}

// AsInsertMany returns the query as a multi-row INSERT. All rows must set the same columns.
func (q *Query) AsInsertMany(rows []Values) *Query {
	c := q.clone()
	c.cmd = cmdInsertMany
	c.rows = rows
	return c
}

// Render returns the SQL and arguments for the query's dialect, or the generic dialect
// when no database can be resolved.
func (q *Query) Render() (string, []interface{}, error) {
	return q.RenderFor(q.backend(syncMode))
}

// RenderFor renders the query for a specific backend.
func (q *Query) RenderFor(b *dialects.Backend) (string, []interface{}, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	d := b.ForQuery()
	st := &Statement{}
	switch q.cmd {
	case cmdUpdate:
		q.buildUpdate(d, st)
	case cmdDelete:
		q.buildDelete(d, st)
	case cmdInsert, cmdInsertMany:
		q.buildInsert(d, st, q.rows)
	default:
		q.buildSelect(d, st)
	}
	if err := st.Err(); err != nil {
		return "", nil, err
	}
	return st.SQL(), st.Args(), nil
}

func (q *Query) backend(m execMode) *dialects.Backend {
	if q.conn != nil {
		return q.conn.dialect
	}
	if db := q.resolveDB(m); db != nil {
		return db.dialectFor(m)
	}
	return dialects.Generic
}

func (q *Query) where() Expression {
	switch len(q.conds) {
	case 0:
		return nil
	case 1:
		return q.conds[0]
	default:
		return And(q.conds...)
	}
}

func (q *Query) aliasing() bool {
	return len(q.joins) > 0 || q.plus != nil
}

func (q *Query) register(d *dialects.Dialect, st *Statement) {
	if _, err := d.Register(q.table); err != nil {
		st.Fail(WrapError(err, q.table.dbName))
	}
	for _, j := range q.joins {
		if j.table != nil {
			if _, err := d.Register(j.table); err != nil {
				st.Fail(WrapError(err, j.table.dbName))
			}
			continue
		}
		if err := d.RegisterAs(j.sub, j.sub.alias); err != nil {
			st.Fail(WrapError(err, j.sub.alias))
		}
	}
	if q.plus != nil {
		q.plus.register(d, st)
	}
}

func (q *Query) buildSelect(d *dialects.Dialect, st *Statement) {
	// a sub-query inside an aliased query aliases its own table instead of resolving
	// columns to the enclosing query's alias
	aliasing := q.aliasing() || d.HasRegistrations()
	if aliasing {
		q.register(d, st)
	}

	st.Write("select ")
	for i, e := range q.selected {
		if i > 0 {
			st.Write(",")
		}
		e.Build(d, st)
	}
	if q.plus != nil {
		q.plus.writeColumns(d, st, len(q.selected) == 0)
	}

	st.Write(" from ", d.Term(q.table.dbName))
	if aliasing {
		alias, _ := d.Alias(q.table)
		st.Write(" ", alias)
	}
	for _, j := range q.joins {
		st.Write(" ", j.kind, " ")
		if j.table != nil {
			alias, _ := d.Alias(j.table)
			st.Write(d.Term(j.table.dbName), " ", alias)
		} else {
			(&InnerQuery{q: j.sub}).Build(d, st)
			st.Write(" ", d.Term(j.sub.alias))
		}
		st.Write(" on ")
		j.on.Build(d, st)
	}
	if q.plus != nil {
		q.plus.writeJoins(d, st)
	}

	if w := q.where(); w != nil {
		st.Write(" where ")
		w.Build(d, st)
	}
	if len(q.groupBy) > 0 {
		st.Write(" group by ")
		for i, e := range q.groupBy {
			if i > 0 {
				st.Write(",")
			}
			e.Build(d, st)
		}
	}
	if len(q.orderBy) > 0 {
		st.Write(" order by ")
		for i, e := range q.orderBy {
			if i > 0 {
				st.Write(", ")
			}
			e.Build(d, st)
		}
	}
	if q.hasLimit {
		st.Write(" limit ")
		st.Bind(d, q.limit)
	}
}

func (q *Query) buildUpdate(d *dialects.Dialect, st *Statement) {
	if len(q.sets) == 0 {
		st.Fail(fmt.Errorf("%w: %s", ErrNothingToUpdate, q.table.dbName))
		return
	}
	st.Write("update ", d.Term(q.table.dbName), " set ")
	for i, a := range q.sets {
		if i > 0 {
			st.Write(", ")
		}
		st.Write(d.Term(a.col.dbName), "=")
		buildValue(d, st, a.value)
	}
	if w := q.where(); w != nil {
		st.Write(" where ")
		w.Build(d, st)
	}
}

func (q *Query) buildDelete(d *dialects.Dialect, st *Statement) {
	st.Write("delete from ", d.Term(q.table.dbName))
	if w := q.where(); w != nil {
		st.Write(" where ")
		w.Build(d, st)
	}
}

// buildInsert renders one INSERT for rows that all set the same columns.
func (q *Query) buildInsert(d *dialects.Dialect, st *Statement, rows []Values) {
	if len(rows) == 0 {
		st.Fail(fmt.Errorf("dqo: insert into %s without rows", q.table.dbName))
		return
	}
	cols, err := q.table.orderedColumns(rows[0])
	if err != nil {
		st.Fail(err)
		return
	}
	for _, r := range rows[1:] {
		if !sameColumns(rows[0], r) {
			st.Fail(fmt.Errorf("dqo: insert into %s: rows set different columns", q.table.dbName))
			return
		}
	}

	st.Write("insert into ", d.Term(q.table.dbName))
	switch {
	case len(cols) > 0:
		st.Write(" (")
		for i, c := range cols {
			if i > 0 {
				st.Write(",")
			}
			st.Write(d.Term(c.dbName))
		}
		st.Write(") values ")
		for ri, r := range rows {
			if ri > 0 {
				st.Write(", ")
			}
			st.Write("(")
			for i, c := range cols {
				if i > 0 {
					st.Write(",")
				}
				buildValue(d, st, r[c.name])
			}
			st.Write(")")
		}
	case d.Is(dialects.MySQL):
		st.Write(" () values ()")
	default:
		st.Write(" default values")
	}

	if q.returning(d.Backend) {
		st.Write(" returning ")
		for i, c := range q.table.pk {
			if i > 0 {
				st.Write(",")
			}
			st.Write(d.Term(c.dbName))
		}
	}
}

func (q *Query) returning(b *dialects.Backend) bool {
	return len(q.table.pk) > 0 && b.SupportsReturning()
}

func sameColumns(a, b Values) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func (t *Table) orderedColumns(values Values) ([]*Column, error) {
	for name := range values {
		if _, ok := t.byName[name]; !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.name, name)
		}
	}
	cols := make([]*Column, 0, len(values))
	for _, c := range t.columns {
		if _, ok := values[c.name]; ok {
			cols = append(cols, c)
		}
	}
	return cols, nil
}
