// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"context"
	"fmt"
	"iter"

	"github.com/coregx/dqo/internal/conn"
)

type execMode int

const (
	syncMode execMode = iota
	asyncMode
)

// InsertBatchSize caps the number of rows sent in one INSERT by InsertMany.
var InsertBatchSize = 500

// maxBindParams keeps a batch under the smallest bind parameter limit of the supported
// backends (sqlite's SQLITE_MAX_VARIABLE_NUMBER).
const maxBindParams = 32766

// resolveDB picks the database in order: query binding, table binding, process default.
func (q *Query) resolveDB(m execMode) *Database {
	if q.db != nil {
		return q.db
	}
	if m == asyncMode {
		if q.table.asyncDB != nil {
			return q.table.asyncDB
		}
		if q.table.db != nil {
			return q.table.db
		}
		if db := DefaultAsyncDB(); db != nil {
			return db
		}
		return DefaultDB()
	}
	if q.table.db != nil {
		return q.table.db
	}
	return DefaultDB()
}

// acquire returns the connection to run on, a release func and whether the connection
// outlives this call (bound with BindConn or scoped in ctx).
func (q *Query) acquire(ctx context.Context, m execMode) (*Connection, func(), bool, error) {
	if q.conn != nil {
		return q.conn, func() {}, true, nil
	}
	db := q.resolveDB(m)
	if db == nil {
		return nil, nil, false, fmt.Errorf("%w: %s", ErrNoDatabase, q.table.name)
	}
	if c := connFromContext(ctx, db, m); c != nil {
		return c, func() {}, true, nil
	}
	c, err := db.open(ctx, m)
	if err != nil {
		return nil, nil, false, err
	}
	return c, func() { _ = c.Close() }, false, nil
}

// targets allocates one scan destination per selected expression, plus columns included.
func (q *Query) targets() []interface{} {
	out := make([]interface{}, 0, len(q.selected))
	for _, e := range q.selected {
		out = append(out, scanTarget(e))
	}
	if q.plus != nil {
		q.plus.walk(func(node *plusNode) {
			for _, c := range node.table.columns {
				out = append(out, targetFor(c.kind))
			}
		})
	}
	return out
}

func (q *Query) selectKeys() []string {
	keys := make([]string, len(q.selected))
	used := make(map[string]bool, len(q.selected))
	for i, e := range q.selected {
		var key string
		switch x := e.(type) {
		case *Column:
			key = x.name
			if x.table != q.table && used[key] {
				key = x.table.name + "." + x.name
			}
		case *Aliasing:
			key = x.alias
		case *Function:
			key = x.name
		}
		if key == "" || used[key] {
			key = fmt.Sprintf("col%d", i)
		}
		used[key] = true
		keys[i] = key
	}
	return keys
}

// materialize turns one scanned record into a Row with its Plus relations.
func (q *Query) materialize(keys []string, dest []interface{}, db *Database) *Row {
	r := newRow(q.table, false)
	r.db = db
	for i, key := range keys {
		r.values[key] = scannedValue(dest[i])
	}
	if q.plus != nil {
		offset := len(keys)
		q.plus.materialize(r, dest, &offset, db)
	}
	return r
}

func (n *plusNode) materialize(parent *Row, dest []interface{}, offset *int, db *Database) {
	for _, child := range n.children {
		cols := child.table.columns
		values := make(Values, len(cols))
		present := false
		for i, c := range cols {
			v := scannedValue(dest[*offset+i])
			values[c.name] = v
			present = present || v != nil
		}
		*offset += len(cols)

		if parent.related == nil {
			parent.related = make(map[string]*Row)
		}
		if !present {
			parent.related[child.fk.name] = nil
			*offset += child.columnCount()
			continue
		}
		rel := newRow(child.table, false)
		rel.values = values
		rel.db = db
		parent.related[child.fk.name] = rel
		child.materialize(rel, dest, offset, db)
	}
}

func scanRows(q *Query, rows conn.Rows, db *Database, yield func(*Row) bool) error {
	keys := q.selectKeys()
	for rows.Next() {
		dest := q.targets()
		if err := rows.Scan(dest...); err != nil {
			return WrapError(err, "dqo: scan")
		}
		if !yield(q.materialize(keys, dest, db)) {
			return nil
		}
	}
	return rows.Err()
}

func (q *Query) fetch(ctx context.Context, m execMode) ([]*Row, error) {
	if q.err != nil {
		return nil, q.err
	}
	c, release, _, err := q.acquire(ctx, m)
	if err != nil {
		return nil, err
	}
	defer release()
	return q.fetchOn(ctx, c)
}

func (q *Query) fetchOn(ctx context.Context, c *Connection) ([]*Row, error) {
	sqlText, args, err := q.RenderFor(c.dialect)
	if err != nil {
		return nil, err
	}
	rows, err := c.Fetch(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*Row{}
	err = scanRows(q, rows, c.db, func(r *Row) bool {
		out = append(out, r)
		return true
	})
	if err != nil {
		return nil, execError(sqlText, args, err)
	}
	return out, nil
}

// First returns the first row, or nil when the query matches nothing.
func (q *Query) First(ctx context.Context) (*Row, error) {
	return q.first(ctx, syncMode)
}

func (q *Query) first(ctx context.Context, m execMode) (*Row, error) {
	rows, err := q.Limit(1).fetch(ctx, m)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// All returns every matching row.
func (q *Query) All(ctx context.Context) ([]*Row, error) {
	return q.fetch(ctx, syncMode)
}

// Rows iterates the matching rows. On a scoped connection (BindConn, Database.Connection
// or Database.Transaction) rows are streamed from the cursor, otherwise they are
// materialized first so the connection can be returned before iteration.
//
// Example:
//
//	for row, err := range q.Rows(ctx) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(row)
//	}
func (q *Query) Rows(ctx context.Context) iter.Seq2[*Row, error] {
	return func(yield func(*Row, error) bool) {
		if q.err != nil {
			yield(nil, q.err)
			return
		}
		c, release, scoped, err := q.acquire(ctx, syncMode)
		if err != nil {
			yield(nil, err)
			return
		}
		if !scoped {
			rows, err := q.fetchOn(ctx, c)
			release()
			if err != nil {
				yield(nil, err)
				return
			}
			for _, r := range rows {
				if !yield(r, nil) {
					return
				}
			}
			return
		}

		sqlText, args, err := q.RenderFor(c.dialect)
		if err != nil {
			yield(nil, err)
			return
		}
		rows, err := c.Fetch(ctx, sqlText, args...)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()
		stopped := false
		err = scanRows(q, rows, c.db, func(r *Row) bool {
			stopped = !yield(r, nil)
			return !stopped
		})
		if err != nil && !stopped {
			yield(nil, execError(sqlText, args, err))
		}
	}
}

// Count returns the number of matching rows.
func (q *Query) Count(ctx context.Context) (int64, error) {
	return q.count(ctx, syncMode)
}

func (q *Query) countQuery() *Query {
	c := q.Select(CountAll)
	c.orderBy = nil
	c.hasLimit = false
	c.plus = nil
	return c
}

func (q *Query) count(ctx context.Context, m execMode) (int64, error) {
	rows, err := q.countQuery().fetch(ctx, m)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	n, _ := rows[0].Get("count").(int64)
	return n, nil
}

// CountEntry is one group of CountBy.
type CountEntry struct {
	Key   []interface{}
	Count int64
}

// Counts is the result of CountBy, in the order the database returned the groups.
type Counts struct {
	entries []CountEntry
	index   map[string]int
}

func newCounts() *Counts {
	return &Counts{index: make(map[string]int)}
}

func countKey(key []interface{}) string {
	return fmt.Sprintf("%#v", normalizeKey(key))
}

// normalizeKey widens integer kinds so Get(1) matches a scanned int64.
func normalizeKey(key []interface{}) []interface{} {
	out := make([]interface{}, len(key))
	for i, k := range key {
		switch v := k.(type) {
		case int:
			out[i] = int64(v)
		case int32:
			out[i] = int64(v)
		case int16:
			out[i] = int64(v)
		case int8:
			out[i] = int64(v)
		case uint:
			out[i] = int64(v)
		case uint32:
			out[i] = int64(v)
		case uint16:
			out[i] = int64(v)
		case uint8:
			out[i] = int64(v)
		case float32:
			out[i] = float64(v)
		default:
			out[i] = v
		}
	}
	return out
}

func (c *Counts) add(key []interface{}, n int64) {
	c.index[countKey(key)] = len(c.entries)
	c.entries = append(c.entries, CountEntry{Key: key, Count: n})
}

// Entries returns the groups.
func (c *Counts) Entries() []CountEntry { return c.entries }

// Len returns the number of groups.
func (c *Counts) Len() int { return len(c.entries) }

// Get returns the count of the group with the given key values, 0 when absent.
func (c *Counts) Get(key ...interface{}) int64 {
	i, ok := c.index[countKey(key)]
	if !ok {
		return 0
	}
	return c.entries[i].Count
}

// Total sums all groups.
func (c *Counts) Total() int64 {
	var total int64
	for _, e := range c.entries {
		total += e.Count
	}
	return total
}

// CountBy groups the matching rows by the given expressions and counts each group.
// The query's ordering is kept, so groups may be ordered by CountAll.
//
// Example:
//
//	counts, err := Something.All().OrderBy(dqo.CountAll.Descending()).CountBy(ctx, Something.C("col1"))
func (q *Query) CountBy(ctx context.Context, items ...Expression) (*Counts, error) {
	return q.countBy(ctx, syncMode, items)
}

func (q *Query) countBy(ctx context.Context, m execMode, items []Expression) (*Counts, error) {
	sel := appendExpr(items, CountAll)
	cq := q.Select(sel...).GroupBy(items...)
	cq.plus = nil
	rows, err := cq.fetch(ctx, m)
	if err != nil {
		return nil, err
	}
	counts := newCounts()
	keys := cq.selectKeys()
	for _, r := range rows {
		key := make([]interface{}, len(items))
		for i := range items {
			key[i] = r.values[keys[i]]
		}
		n, _ := r.values["count"].(int64)
		counts.add(key, n)
	}
	return counts, nil
}

// Insert inserts one row and returns its primary key: a scalar for a single column key,
// []interface{} for a composite one, nil when the table has none or the driver cannot
// report it.
func (q *Query) Insert(ctx context.Context, values Values) (interface{}, error) {
	return q.insert(ctx, syncMode, values)
}

func (q *Query) insert(ctx context.Context, m execMode, values Values) (interface{}, error) {
	keys, err := q.insertMany(ctx, m, []Values{values})
	if err != nil || len(keys) == 0 {
		return nil, err
	}
	return keys[0], nil
}

// InsertMany inserts rows in batches and returns one primary key per row, in order.
// Consecutive rows setting the same columns share a statement. An empty input sends
// nothing.
func (q *Query) InsertMany(ctx context.Context, rows []Values) ([]interface{}, error) {
	return q.insertMany(ctx, syncMode, rows)
}

func (q *Query) insertMany(ctx context.Context, m execMode, rows []Values) ([]interface{}, error) {
	keys := make([]interface{}, 0, len(rows))
	if q.err != nil {
		return nil, q.err
	}
	if len(rows) == 0 {
		return keys, nil
	}
	for _, r := range rows {
		if _, err := q.table.orderedColumns(r); err != nil {
			return nil, err
		}
	}

	c, release, _, err := q.acquire(ctx, m)
	if err != nil {
		return nil, err
	}
	defer release()

	for _, batch := range insertBatches(rows) {
		got, err := q.insertBatch(ctx, c, batch)
		if err != nil {
			return nil, err
		}
		keys = append(keys, got...)
	}
	return keys, nil
}

// insertBatches groups consecutive rows with the same column set and splits the groups
// by InsertBatchSize and the bind parameter limit. Rows with no values go one per
// statement, since "default values" inserts a single row.
func insertBatches(rows []Values) [][]Values {
	var out [][]Values
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i < len(rows) && sameColumns(rows[start], rows[i]) {
			continue
		}
		group := rows[start:i]
		size := InsertBatchSize
		if n := len(group[0]); n == 0 {
			size = 1
		} else if size*n > maxBindParams {
			size = maxBindParams / n
		}
		if size < 1 {
			size = 1
		}
		for len(group) > 0 {
			end := min(size, len(group))
			out = append(out, group[:end])
			group = group[end:]
		}
		start = i
	}
	return out
}

func (q *Query) insertBatch(ctx context.Context, c *Connection, rows []Values) ([]interface{}, error) {
	iq := q.clone()
	iq.cmd = cmdInsertMany
	iq.rows = rows
	sqlText, args, err := iq.RenderFor(c.dialect)
	if err != nil {
		return nil, err
	}

	if q.returning(c.dialect) {
		res, err := c.Fetch(ctx, sqlText, args...)
		if err != nil {
			return nil, err
		}
		defer res.Close()
		keys, err := q.scanKeys(res)
		if err != nil {
			return nil, execError(sqlText, args, err)
		}
		for len(keys) < len(rows) {
			keys = append(keys, nil)
		}
		return keys, nil
	}

	res, err := c.Execute(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	keys := make([]interface{}, len(rows))
	first, idErr := res.LastInsertId()
	for i, r := range rows {
		keys[i] = q.table.keyOf(r, first, idErr, i)
	}
	return keys, nil
}

func (q *Query) scanKeys(rows conn.Rows) ([]interface{}, error) {
	var keys []interface{}
	for rows.Next() {
		dest := make([]interface{}, len(q.table.pk))
		for i, c := range q.table.pk {
			dest[i] = targetFor(c.kind)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		keys = append(keys, packKey(dest))
	}
	return keys, rows.Err()
}

func packKey(dest []interface{}) interface{} {
	if len(dest) == 1 {
		return scannedValue(dest[0])
	}
	parts := make([]interface{}, len(dest))
	for i, d := range dest {
		parts[i] = scannedValue(d)
	}
	return parts
}

// keyOf derives the key of the i-th row of a batch: from the row itself when it sets the
// whole primary key, otherwise from the first generated id of the batch.
func (t *Table) keyOf(values Values, first int64, idErr error, i int) interface{} {
	if len(t.pk) == 0 {
		return nil
	}
	parts := make([]interface{}, len(t.pk))
	complete := true
	for j, c := range t.pk {
		v, ok := values[c.name]
		if !ok {
			complete = false
			break
		}
		parts[j] = v
	}
	if complete {
		if len(parts) == 1 {
			return parts[0]
		}
		return parts
	}
	if len(t.pk) != 1 || idErr != nil {
		return nil
	}
	return first + int64(i)
}

// Update applies the Set assignments to the matching rows and returns the number of rows
// affected.
func (q *Query) Update(ctx context.Context) (int64, error) {
	return q.update(ctx, syncMode)
}

func (q *Query) update(ctx context.Context, m execMode) (int64, error) {
	return q.AsUpdate().exec(ctx, m)
}

// Delete removes the matching rows and returns the number of rows affected.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	return q.delete(ctx, syncMode)
}

func (q *Query) delete(ctx context.Context, m execMode) (int64, error) {
	return q.AsDelete().exec(ctx, m)
}

func (q *Query) exec(ctx context.Context, m execMode) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	c, release, _, err := q.acquire(ctx, m)
	if err != nil {
		return 0, err
	}
	defer release()
	sqlText, args, err := q.RenderFor(c.dialect)
	if err != nil {
		return 0, err
	}
	res, err := c.Execute(ctx, sqlText, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, WrapError(err, "dqo: rows affected")
	}
	return n, nil
}
