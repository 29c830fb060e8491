package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/dqo/internal/conn"
	"github.com/coregx/dqo/internal/dialects"
)

func defineSomething(t *testing.T, opts ...TableOption) *Table {
	t.Helper()
	tbl, err := Define("Something", append([]TableOption{
		Col("col1", NewColumn(Int, PrimaryKey())),
		Col("col2", NewColumn(String)),
	}, opts...)...)
	require.NoError(t, err)
	return tbl
}

func defineOther(t *testing.T) *Table {
	t.Helper()
	tbl, err := Define("Other",
		Col("id", NewColumn(Int, PrimaryKey())),
		Col("name", NewColumn(String)),
	)
	require.NoError(t, err)
	return tbl
}

func render(t *testing.T, q *Query) (string, []interface{}) {
	t.Helper()
	sql, args, err := q.RenderFor(dialects.Generic)
	require.NoError(t, err)
	return sql, args
}

func TestQuery_Select(t *testing.T) {
	s := defineSomething(t)
	col1, col2 := s.C("col1"), s.C("col2")

	tests := []struct {
		name string
		q    *Query
		sql  string
	}{
		{"all", s.All(), "select col1,col2 from something"},
		{"add selected column", s.All().Select(col2.Ascending()), "select col1,col2 from something"},
		{"concrete column", s.All().Select(col1), "select col1 from something"},
		{"remove column", s.All().Select(col1.Descending()), "select col2 from something"},
		{"nothing", s.All().Select(), "select  from something"},
		{"add to nothing", s.All().Select().Select(col2.Ascending()), "select col2 from something"},
		{"removal wins over addition", s.All().Select(col1.Descending(), col1.Ascending()), "select col2 from something"},
		{"removal drops additions", s.All().Select().Select(col2.Ascending(), col1.Descending()), "select  from something"},
		{"several additions", s.All().Select().Select(col2.Ascending(), col1.Ascending()), "select col2,col1 from something"},
		{"function", s.All().Select(CountAll), "select count(1) from something"},
		{"aliased", s.All().Select(col1.As("c")), "select col1 as c from something"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := render(t, tt.q)
			assert.Equal(t, tt.sql, sql)
			assert.Empty(t, args)
		})
	}
}

func TestQuery_SelectMixed(t *testing.T) {
	s := defineSomething(t)
	q := s.All().Select(s.C("col1"), s.C("col2").Descending())
	_, _, err := q.Render()
	assert.ErrorIs(t, err, ErrMixedSelect)
	assert.ErrorIs(t, q.Where(s.C("col1").Eq(1)).Err(), ErrMixedSelect)
}

func TestQuery_Where(t *testing.T) {
	s := defineSomething(t)
	col1, col2 := s.C("col1"), s.C("col2")

	tests := []struct {
		name string
		q    *Query
		sql  string
		args []interface{}
	}{
		{"eq", s.All().Where(col1.Eq(1)), "select col1,col2 from something where col1=?", []interface{}{1}},
		{"values", s.All().WhereEq(Values{"col1": 1}), "select col1,col2 from something where col1=?", []interface{}{1}},
		{
			"condition and values", s.All().Where(col1.Eq(1)).WhereEq(Values{"col2": 2}),
			"select col1,col2 from something where col1=? and col2=?", []interface{}{1, 2},
		},
		{"and", s.All().Where(col1.Eq(1).And(col2.Eq(2))), "select col1,col2 from something where col1=? and col2=?", []interface{}{1, 2}},
		{"or", s.All().Where(col1.Eq(1).Or(col2.Eq(2))), "select col1,col2 from something where col1=? or col2=?", []interface{}{1, 2}},
		{
			"or inside and", s.All().Where(col1.Eq(1).Or(col2.Eq(2))).WhereEq(Values{"col1": 3}),
			"select col1,col2 from something where (col1=? or col2=?) and col1=?", []interface{}{1, 2, 3},
		},
		{
			"and inside or", s.All().Where(Or(col1.Eq(3), And(col1.Eq(1), col2.Eq(2)))),
			"select col1,col2 from something where col1=? or (col1=? and col2=?)", []interface{}{3, 1, 2},
		},
		{
			"flat and", s.All().Where(And(col1.Eq(1), col2.Eq(2)).And(col1.Eq(3))),
			"select col1,col2 from something where col1=? and col2=? and col1=?", []interface{}{1, 2, 3},
		},
		{"ne", s.All().Where(col1.Ne(2)), "select col1,col2 from something where col1<>?", []interface{}{2}},
		{"gt", s.All().Where(col1.Gt(2)), "select col1,col2 from something where col1>?", []interface{}{2}},
		{"lt", s.All().Where(col1.Lt(2)), "select col1,col2 from something where col1<?", []interface{}{2}},
		{"ge", s.All().Where(col1.Ge(2)), "select col1,col2 from something where col1>=?", []interface{}{2}},
		{"le", s.All().Where(col1.Le(2)), "select col1,col2 from something where col1<=?", []interface{}{2}},
		{"like", s.All().Where(col2.Like("a%")), "select col1,col2 from something where col2 like ?", []interface{}{"a%"}},
		{"is null", s.All().Where(col2.IsNull()), "select col1,col2 from something where col2 is null", nil},
		{"is not null", s.All().Where(col2.IsNotNull()), "select col1,col2 from something where col2 is not null", nil},
		{"in", s.All().Where(col1.In(1, 2, 3)), "select col1,col2 from something where col1 in (?,?,?)", []interface{}{1, 2, 3}},
		{"not in", s.All().Where(col1.NotIn(4)), "select col1,col2 from something where col1 not in (?)", []interface{}{4}},
		{"column operand", s.All().Where(col1.Eq(col2)), "select col1,col2 from something where col1=col2", nil},
		{"raw", s.All().Where(Raw("col1 between ? and ?", 1, 5)), "select col1,col2 from something where col1 between ? and ?", []interface{}{1, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := render(t, tt.q)
			assert.Equal(t, tt.sql, sql)
			if tt.args == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestQuery_OrderLimit(t *testing.T) {
	s := defineSomething(t)
	col1, col2 := s.C("col1"), s.C("col2")

	tests := []struct {
		name string
		q    *Query
		sql  string
		args []interface{}
	}{
		{"limit", s.All().Limit(2), "select col1,col2 from something limit ?", []interface{}{2}},
		{"top", s.All().Top(3), "select col1,col2 from something limit ?", []interface{}{3}},
		{"where limit", s.All().WhereEq(Values{"col1": 1}).Limit(2), "select col1,col2 from something where col1=? limit ?", []interface{}{1, 2}},
		{"order", s.All().OrderBy(col1), "select col1,col2 from something order by col1", nil},
		{"desc", s.All().OrderBy(col1.Descending()), "select col1,col2 from something order by col1 desc", nil},
		{"asc", s.All().OrderBy(col1.Ascending()), "select col1,col2 from something order by col1 asc", nil},
		{"multiple", s.All().OrderBy(col1, col2.Descending()), "select col1,col2 from something order by col1, col2 desc", nil},
		{"replaced", s.All().OrderBy(col1).OrderBy(col2), "select col1,col2 from something order by col2", nil},
		{"group", s.All().Select(col2, CountAll).GroupBy(col2), "select col2,count(1) from something group by col2", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := render(t, tt.q)
			assert.Equal(t, tt.sql, sql)
			if tt.args == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestQuery_CopyOnWrite(t *testing.T) {
	s := defineSomething(t)
	base := s.All().Where(s.C("col1").Gt(1))
	limited := base.Limit(5)
	ordered := base.OrderBy(s.C("col2"))
	narrowed := base.Where(s.C("col2").Eq("x"))

	sql, _ := render(t, base)
	assert.Equal(t, "select col1,col2 from something where col1>?", sql)
	sql, _ = render(t, limited)
	assert.Equal(t, "select col1,col2 from something where col1>? limit ?", sql)
	sql, _ = render(t, ordered)
	assert.Equal(t, "select col1,col2 from something where col1>? order by col2", sql)
	sql, args := render(t, narrowed)
	assert.Equal(t, "select col1,col2 from something where col1>? and col2=?", sql)
	assert.Equal(t, []interface{}{1, "x"}, args)
}

func TestQuery_Commands(t *testing.T) {
	s := defineSomething(t)
	col1 := s.C("col1")

	tests := []struct {
		name string
		q    *Query
		b    *dialects.Backend
		sql  string
		args []interface{}
	}{
		{"delete", s.All().AsDelete(), dialects.Generic, "delete from something", nil},
		{"delete where", s.All().WhereEq(Values{"col1": 2}).AsDelete(), dialects.Generic, "delete from something where col1=?", []interface{}{2}},
		{"delete ignores order", s.All().OrderBy(col1).Limit(1).AsDelete(), dialects.Generic, "delete from something", nil},
		{
			"update", s.All().Set(Values{"col2": 2, "col1": 3}).WhereEq(Values{"col1": 1}).AsUpdate(), dialects.Generic,
			"update something set col1=?, col2=? where col1=?", []interface{}{3, 2, 1},
		},
		{
			"update merges sets", s.All().Set(Values{"col1": 3}).Set(Values{"col2": "x", "col1": 4}).AsUpdate(), dialects.Generic,
			"update something set col1=?, col2=?", []interface{}{4, "x"},
		},
		{
			"update expression", s.All().Set(Values{"col1": Raw("col1+1")}).AsUpdate(), dialects.Generic,
			"update something set col1=col1+1", nil,
		},
		{
			"insert", s.All().AsInsert(Values{"col1": 1, "col2": 2}), dialects.Generic,
			"insert into something (col1,col2) values (?,?) returning col1", []interface{}{1, 2},
		},
		{
			"insert postgres", s.All().AsInsert(Values{"col2": "x"}), dialects.Postgres,
			"insert into something (col2) values ($1) returning col1", []interface{}{"x"},
		},
		{
			"insert mysql", s.All().AsInsert(Values{"col1": 1, "col2": 2}), dialects.MySQL,
			"insert into something (col1,col2) values (?,?)", []interface{}{1, 2},
		},
		{"insert defaults", s.All().AsInsert(Values{}), dialects.Generic, "insert into something default values returning col1", nil},
		{"insert defaults mysql", s.All().AsInsert(nil), dialects.MySQL, "insert into something () values ()", nil},
		{
			"insert many", s.All().AsInsertMany([]Values{{"col1": 1}, {"col1": 2}}), dialects.SQLite,
			"insert into something (col1) values (?), (?) returning col1", []interface{}{1, 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.q.RenderFor(tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			if tt.args == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.args, args)
			}
		})
	}
}

func TestQuery_CommandErrors(t *testing.T) {
	s := defineSomething(t)

	_, _, err := s.All().AsUpdate().Render()
	assert.ErrorIs(t, err, ErrNothingToUpdate)

	_, _, err = s.All().AsInsert(Values{"nope": 1}).Render()
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, _, err = s.All().Set(Values{"nope": 1}).AsUpdate().Render()
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, _, err = s.All().AsInsertMany([]Values{{"col1": 1}, {"col2": "x"}}).Render()
	assert.Error(t, err)
}

func TestQuery_Postgres(t *testing.T) {
	u, err := Define("User",
		Col("id", NewColumn(Int, PrimaryKey())),
		Col("name", NewColumn(String)),
	)
	require.NoError(t, err)

	sql, args, err := u.All().Where(u.C("name").Eq("ann"), u.C("id").Gt(3)).Limit(1).RenderFor(dialects.Postgres)
	require.NoError(t, err)
	assert.Equal(t, `select id,"name" from "user" where "name"=$1 and id>$2 limit $3`, sql)
	assert.Equal(t, []interface{}{"ann", 3, 1}, args)

	sql, _, err = u.All().RenderFor(dialects.Generic)
	require.NoError(t, err)
	assert.Equal(t, "select id,name from user", sql)
}

func TestQuery_Joins(t *testing.T) {
	s := defineSomething(t)
	o := defineOther(t)
	on := s.C("col1").Eq(o.C("id"))

	tests := []struct {
		name string
		q    *Query
		sql  string
	}{
		{"join", s.All().Join(o, on), "select s1.col1,s1.col2 from something s1 join other o1 on s1.col1=o1.id"},
		{"left", s.All().LeftJoin(o, on), "select s1.col1,s1.col2 from something s1 left join other o1 on s1.col1=o1.id"},
		{"right", s.All().RightJoin(o, on), "select s1.col1,s1.col2 from something s1 right join other o1 on s1.col1=o1.id"},
		{"outer", s.All().OuterJoin(o, on), "select s1.col1,s1.col2 from something s1 full outer join other o1 on s1.col1=o1.id"},
		{
			"joined columns", s.All().Select(s.C("col2"), o.C("name")).LeftJoin(o, on).Where(o.C("name").IsNotNull()),
			"select s1.col2,o1.name from something s1 left join other o1 on s1.col1=o1.id where o1.name is not null",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := render(t, tt.q)
			assert.Equal(t, tt.sql, sql)
			assert.Empty(t, args)
		})
	}
}

func TestQuery_SubQueries(t *testing.T) {
	s := defineSomething(t)
	o := defineOther(t)

	sub := o.All().Select(o.C("id")).As("sub")
	sql, _ := render(t, s.All().Join(sub, s.C("col1").Eq(sub.Ref("id"))))
	assert.Equal(t, "select s1.col1,s1.col2 from something s1 join (select o1.id from other o1) sub on s1.col1=sub.id", sql)

	inner := o.All().Select(o.C("id")).Where(o.C("id").Gt(5))
	sql, args, err := s.All().Where(s.C("col1").In(inner), s.C("col2").Eq("x")).RenderFor(dialects.Postgres)
	require.NoError(t, err)
	assert.Equal(t, "select col1,col2 from something where col1 in (select id from other where id>$1) and col2=$2", sql)
	assert.Equal(t, []interface{}{5, "x"}, args)

	_, _, err = s.All().Join(o.All(), s.C("col1").Eq(o.C("id"))).Render()
	assert.ErrorIs(t, err, ErrUnaliasedSubquery)
}

func TestQuery_SubQueryOwnsItsAliases(t *testing.T) {
	s := defineSomething(t)
	o := defineOther(t)
	on := s.C("col1").Eq(o.C("id"))

	inner := s.All().Select(s.C("col1")).Where(s.C("col2").Eq("x"))
	sql, args := render(t, s.All().Join(o, on).Where(s.C("col1").In(inner)))
	assert.Equal(t,
		"select s1.col1,s1.col2 from something s1 join other o1 on s1.col1=o1.id"+
			" where s1.col1 in (select s2.col1 from something s2 where s2.col2=?)", sql)
	assert.Equal(t, []interface{}{"x"}, args)

	// columns of enclosing tables still resolve to their aliases
	correlated := o.All().Select(o.C("id")).Where(o.C("name").Eq(s.C("col2")))
	sql, _ = render(t, s.All().Join(o, on).Where(s.C("col1").In(correlated)))
	assert.Equal(t,
		"select s1.col1,s1.col2 from something s1 join other o1 on s1.col1=o1.id"+
			" where s1.col1 in (select o2.id from other o2 where o2.name=s1.col2)", sql)
}

func defineChain(t *testing.T) (a, b, c *Table) {
	t.Helper()
	var err error
	c, err = Define("C", Col("id", NewColumn(Int, PrimaryKey())))
	require.NoError(t, err)
	a, err = Define("A",
		Col("id", NewColumn(Int, PrimaryKey())),
		ForeignKeyTo("c", c.C("id")),
	)
	require.NoError(t, err)
	b, err = Define("B",
		Col("id", NewColumn(Int, PrimaryKey())),
		ForeignKeyTo("a", a.C("id")),
		ForeignKeyTo("a2", a.C("id")),
	)
	require.NoError(t, err)
	return a, b, c
}

func TestQuery_Plus(t *testing.T) {
	a, b, _ := defineChain(t)

	sql, _ := render(t, b.All().Plus(b.FK("a")))
	assert.Equal(t, "select b1.id,b1.a_id,b1.a2_id,a1.id,a1.c_id from b b1 left join a a1 on b1.a_id=a1.id", sql)

	sql, _ = render(t, b.All().Plus(b.FK("a"), a.FK("c")))
	assert.Equal(t,
		"select b1.id,b1.a_id,b1.a2_id,a1.id,a1.c_id,c1.id from b b1"+
			" left join a a1 on b1.a_id=a1.id left join c c1 on a1.c_id=c1.id", sql)

	// the same table reached twice gets two aliases
	sql, _ = render(t, b.All().Plus(b.FK("a")).Plus(b.FK("a2")))
	assert.Equal(t,
		"select b1.id,b1.a_id,b1.a2_id,a1.id,a1.c_id,a2.id,a2.c_id from b b1"+
			" left join a a1 on b1.a_id=a1.id left join a a2 on b1.a2_id=a2.id", sql)

	// repeated keys share one join
	sql, _ = render(t, b.All().Plus(b.FK("a")).Plus(b.FK("a")))
	assert.Equal(t, "select b1.id,b1.a_id,b1.a2_id,a1.id,a1.c_id from b b1 left join a a1 on b1.a_id=a1.id", sql)

	_, _, err := b.All().Plus(a.FK("c")).Render()
	assert.ErrorIs(t, err, ErrUnreachableForeignKey)
}

func TestQuery_PlusColumnReferences(t *testing.T) {
	a, b, c := defineChain(t)
	base := "select b1.id,b1.a_id,b1.a2_id,a1.id,a1.c_id from b b1 left join a a1 on b1.a_id=a1.id"

	tests := []struct {
		name string
		q    *Query
		sql  string
		err  error
	}{
		{"where on joined table", b.All().Plus(b.FK("a")).Where(a.C("id").Eq(1)), base + " where a1.id=?", nil},
		{"where on root table", b.All().Plus(b.FK("a")).Where(b.C("id").Eq(1)), base + " where b1.id=?", nil},
		{"order by joined table", b.All().Plus(b.FK("a")).OrderBy(a.C("id").Descending()), base + " order by a1.id desc", nil},
		{"joined twice", b.All().Plus(b.FK("a"), b.FK("a2")).Where(a.C("id").Eq(1)), "", ErrAmbiguousTable},
		{"not joined", b.All().Plus(b.FK("a")).Where(c.C("id").Eq(1)), "", ErrTableNotInQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _, err := tt.q.RenderFor(dialects.Generic)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
		})
	}
}

func TestQuery_PlusDoesNotLeak(t *testing.T) {
	a, b, _ := defineChain(t)
	base := b.All().Plus(b.FK("a"))
	_ = base.Plus(a.FK("c"))

	sql, _ := render(t, base)
	assert.Equal(t, "select b1.id,b1.a_id,b1.a2_id,a1.id,a1.c_id from b b1 left join a a1 on b1.a_id=a1.id", sql)
}

func TestQuery_RenderResolvesDialect(t *testing.T) {
	db, err := New(WithSource(conn.NewEcho()), WithDialect(dialects.Postgres))
	require.NoError(t, err)
	s := defineSomething(t, BindDB(db))

	sql, _, err := s.All().Where(s.C("col1").Eq(1)).Render()
	require.NoError(t, err)
	assert.Equal(t, "select col1,col2 from something where col1=$1", sql)

	sql, _, err = s.All().Bind(NewEcho()).Where(s.C("col1").Eq(1)).Render()
	require.NoError(t, err)
	assert.Equal(t, "select col1,col2 from something where col1=?", sql)
}
