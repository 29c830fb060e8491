// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"strings"

	"github.com/coregx/dqo/internal/dialects"
)

// Expression is a node of the SQL expression tree. Build appends the node's SQL to the
// statement and binds literal values in the order their placeholders are written.
//
// Example:
//
//	Something.C("col1").Eq(1).Or(Something.C("col2").Eq(2))
type Expression interface {
	Build(d *dialects.Dialect, st *Statement)
}

// Statement is the sink of one render pass: SQL text plus the ordered argument list.
type Statement struct {
	sql  strings.Builder
	args []interface{}
	err  error
}

// Write appends raw SQL text.
func (st *Statement) Write(parts ...string) {
	for _, p := range parts {
		st.sql.WriteString(p)
	}
}

// Bind writes the next placeholder and records v as its argument.
func (st *Statement) Bind(d *dialects.Dialect, v interface{}) {
	st.sql.WriteString(d.Arg())
	st.args = append(st.args, v)
}

// Fail records the first error raised while rendering.
func (st *Statement) Fail(err error) {
	if st.err == nil {
		st.err = err
	}
}

// SQL returns the rendered text.
func (st *Statement) SQL() string { return st.sql.String() }

// Args returns the bound arguments, never nil.
func (st *Statement) Args() []interface{} {
	if st.args == nil {
		return []interface{}{}
	}
	return st.args
}

// Err returns the first rendering error.
func (st *Statement) Err() error { return st.err }

// Reference writes a column reference through the table's alias in d.
func (st *Statement) Reference(d *dialects.Dialect, tbl dialects.Aliased, column string) {
	ref, err := d.Reference(tbl, column)
	if err != nil {
		st.Fail(err)
		return
	}
	st.Write(ref)
}

// buildValue renders v inline when it is an expression and binds it otherwise.
func buildValue(d *dialects.Dialect, st *Statement, v interface{}) {
	if e, ok := v.(Expression); ok {
		e.Build(d, st)
		return
	}
	st.Bind(d, v)
}

// Condition joins its components with a keyword. Comparisons use an empty separator
// ("col1=?"), boolean and keyword operators a single space ("a and b", "col is null").
type Condition struct {
	join       string
	components []interface{}
	sep        string
}

func compare(op string, left, right interface{}) *Condition {
	return &Condition{join: op, components: []interface{}{left, right}}
}

func keywordOp(op string, left, right interface{}) *Condition {
	return &Condition{join: op, components: []interface{}{left, right}, sep: " "}
}

// And joins conditions with "and".
func And(conds ...Expression) *Condition {
	return boolean("and", conds)
}

// Or joins conditions with "or".
func Or(conds ...Expression) *Condition {
	return boolean("or", conds)
}

func boolean(join string, conds []Expression) *Condition {
	components := make([]interface{}, len(conds))
	for i, c := range conds {
		components[i] = c
	}
	return &Condition{join: join, components: components, sep: " "}
}

// And returns c and other.
func (c *Condition) And(other ...Expression) *Condition {
	return And(append([]Expression{c}, other...)...)
}

// Or returns c or other.
func (c *Condition) Or(other ...Expression) *Condition {
	return Or(append([]Expression{c}, other...)...)
}

// Join returns the joining keyword or operator.
func (c *Condition) Join() string { return c.join }

func isBoolean(join string) bool {
	return join == "and" || join == "or"
}

// Build renders the components. A nested condition is parenthesized only when both it and
// c are and/or joins with different keywords.
func (c *Condition) Build(d *dialects.Dialect, st *Statement) {
	for i, component := range c.components {
		if i > 0 {
			st.Write(c.sep, c.join, c.sep)
		}
		if child, ok := component.(*Condition); ok {
			parens := isBoolean(c.join) && isBoolean(child.join) && c.join != child.join
			if parens {
				st.Write("(")
			}
			child.Build(d, st)
			if parens {
				st.Write(")")
			}
			continue
		}
		buildValue(d, st, component)
	}
}

// RawExp is literal SQL with optional bound arguments.
type RawExp struct {
	SQL  string
	Args []interface{}
}

// Raw creates a literal SQL fragment. Each "?" in sql is replaced by the dialect's
// placeholder and bound to the matching argument.
func Raw(sql string, args ...interface{}) *RawExp {
	return &RawExp{SQL: sql, Args: args}
}

// Build writes the fragment.
func (e *RawExp) Build(d *dialects.Dialect, st *Statement) {
	if len(e.Args) == 0 {
		st.Write(e.SQL)
		return
	}
	parts := strings.Split(e.SQL, "?")
	for i, p := range parts {
		st.Write(p)
		if i < len(parts)-1 && i < len(e.Args) {
			st.Bind(d, e.Args[i])
		}
	}
}

type nullLiteral struct{}

func (nullLiteral) Build(_ *dialects.Dialect, st *Statement) { st.Write("null") }

// Null is the SQL null literal.
var Null Expression = nullLiteral{}

// valueList renders "(?,?,?)".
type valueList []interface{}

func (l valueList) Build(d *dialects.Dialect, st *Statement) {
	st.Write("(")
	for i, v := range l {
		if i > 0 {
			st.Write(",")
		}
		buildValue(d, st, v)
	}
	st.Write(")")
}

// InnerQuery renders a query as a parenthesized sub-select using the inner-query dialect.
type InnerQuery struct {
	q *Query
}

// Build renders "(select ...)".
func (iq *InnerQuery) Build(d *dialects.Dialect, st *Statement) {
	st.Write("(")
	iq.q.buildSelect(d.ForInnerQuery(), st)
	st.Write(")")
}

// PosColumn wraps a column or function for Ascending. In Select it adds the wrapped
// expression to the current selection, in OrderBy it renders "<expr> asc".
type PosColumn struct {
	expr Expression
}

// Build renders "<expr> asc".
func (p *PosColumn) Build(d *dialects.Dialect, st *Statement) {
	p.expr.Build(d, st)
	st.Write(" asc")
}

// Unwrap returns the wrapped expression.
func (p *PosColumn) Unwrap() Expression { return p.expr }

// NegColumn wraps a column or function for Descending. In Select it removes the wrapped
// expression from the current selection, in OrderBy it renders "<expr> desc".
type NegColumn struct {
	expr Expression
}

// Build renders "<expr> desc".
func (n *NegColumn) Build(d *dialects.Dialect, st *Statement) {
	n.expr.Build(d, st)
	st.Write(" desc")
}

// Unwrap returns the wrapped expression.
func (n *NegColumn) Unwrap() Expression { return n.expr }

// operand is embedded by Column and Function to provide the condition builders.
type operand struct {
	self Expression
}

// Eq builds "<expr>=<v>".
func (c operand) Eq(v interface{}) *Condition { return compare("=", c.self, v) }

// Ne builds "<expr><><v>".
func (c operand) Ne(v interface{}) *Condition { return compare("<>", c.self, v) }

// Gt builds "<expr>><v>".
func (c operand) Gt(v interface{}) *Condition { return compare(">", c.self, v) }

// Lt builds "<expr><<v>".
func (c operand) Lt(v interface{}) *Condition { return compare("<", c.self, v) }

// Ge builds "<expr>>=<v>".
func (c operand) Ge(v interface{}) *Condition { return compare(">=", c.self, v) }

// Le builds "<expr><=<v>".
func (c operand) Le(v interface{}) *Condition { return compare("<=", c.self, v) }

// Like builds "<expr> like <pattern>".
func (c operand) Like(pattern interface{}) *Condition { return keywordOp("like", c.self, pattern) }

// IsNull builds "<expr> is null".
func (c operand) IsNull() *Condition { return keywordOp("is", c.self, Null) }

// IsNotNull builds "<expr> is not null".
func (c operand) IsNotNull() *Condition { return keywordOp("is not", c.self, Null) }

// In builds "<expr> in (...)". A single *Query argument becomes a sub-select, anything
// else a list of bound values.
func (c operand) In(values ...interface{}) *Condition {
	return keywordOp("in", c.self, inOperand(values))
}

// NotIn builds "<expr> not in (...)".
func (c operand) NotIn(values ...interface{}) *Condition {
	return keywordOp("not in", c.self, inOperand(values))
}

func inOperand(values []interface{}) Expression {
	if len(values) == 1 {
		switch v := values[0].(type) {
		case *Query:
			return &InnerQuery{q: v}
		case *InnerQuery:
			return v
		}
	}
	return valueList(values)
}

// Ascending wraps the expression in a PosColumn.
func (c operand) Ascending() *PosColumn { return &PosColumn{expr: c.self} }

// Descending wraps the expression in a NegColumn.
func (c operand) Descending() *NegColumn { return &NegColumn{expr: c.self} }
