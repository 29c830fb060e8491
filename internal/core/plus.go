package core

import (
	"github.com/coregx/dqo/internal/dialects"
)

// plusNode is one table of a Plus join tree. The root is the queried table, every other
// node was reached through fk from its parent.
type plusNode struct {
	table    *Table
	fk       *ForeignKey
	parent   *plusNode
	children []*plusNode
}

// DBName implements dialects.Aliased. Each node gets its own alias, so the same table may
// appear several times in the tree. Columns of a table reached by exactly one node
// resolve to that node's alias.
func (n *plusNode) DBName() string { return n.table.dbName }

// key is the registration key of the node's table: the Table itself for the root.
func (n *plusNode) key() dialects.Aliased {
	if n.parent == nil {
		return n.table
	}
	return n
}

func (n *plusNode) copy() *plusNode {
	return n.copyWithParent(nil)
}

func (n *plusNode) copyWithParent(parent *plusNode) *plusNode {
	c := &plusNode{table: n.table, fk: n.fk, parent: parent}
	for _, child := range n.children {
		c.children = append(c.children, child.copyWithParent(c))
	}
	return c
}

// attach adds fk below the first node (breadth first) whose table owns it.
// Attaching a key already present is a no-op.
func (n *plusNode) attach(fk *ForeignKey) bool {
	queue := []*plusNode{n}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node.table == fk.table {
			for _, child := range node.children {
				if child.fk == fk {
					return true
				}
			}
			node.children = append(node.children, &plusNode{table: fk.Target(), fk: fk, parent: node})
			return true
		}
		queue = append(queue, node.children...)
	}
	return false
}

// walk visits the non-root nodes depth first, in the order their columns are selected.
func (n *plusNode) walk(fn func(*plusNode)) {
	for _, child := range n.children {
		fn(child)
		child.walk(fn)
	}
}

func (n *plusNode) register(d *dialects.Dialect, st *Statement) {
	n.walk(func(node *plusNode) {
		if _, err := d.RegisterVia(node, node.table); err != nil {
			st.Fail(WrapError(err, node.table.dbName))
		}
	})
}

func (n *plusNode) writeColumns(d *dialects.Dialect, st *Statement, first bool) {
	n.walk(func(node *plusNode) {
		for _, c := range node.table.columns {
			if !first {
				st.Write(",")
			}
			first = false
			st.Reference(d, node, c.dbName)
		}
	})
}

func (n *plusNode) writeJoins(d *dialects.Dialect, st *Statement) {
	n.walk(func(node *plusNode) {
		alias, _ := d.Alias(node)
		st.Write(" left join ", d.Term(node.table.dbName), " ", alias, " on ")
		for i, local := range node.fk.columns {
			if i > 0 {
				st.Write(" and ")
			}
			st.Reference(d, node.parent.key(), local.dbName)
			st.Write("=")
			st.Reference(d, node, node.fk.refs[i].dbName)
		}
	})
}

// columnCount is the number of columns the non-root nodes add to the select list.
func (n *plusNode) columnCount() int {
	count := 0
	n.walk(func(node *plusNode) { count += len(node.table.columns) })
	return count
}
