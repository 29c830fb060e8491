// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package evolve computes and applies the DDL that brings a live PostgreSQL or SQLite
// schema in line with the tables defined on a Database.
//
// Statements are emitted in a fixed order: create table for new tables, their indexes,
// deferred foreign keys, table renames, column changes on existing tables, and finally
// table drops.
package evolve

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/coregx/dqo/internal/core"
	"github.com/coregx/dqo/internal/dialects"
	"github.com/coregx/dqo/internal/logger"
)

// ErrAmbiguousRename is returned when a table or column could have been renamed from
// more than one existing name, or two definitions claim the same previous name.
var ErrAmbiguousRename = errors.New("ambiguous rename")

// Change is one DDL statement with its arguments.
type Change = core.Change

type options struct {
	ignore    map[string]struct{}
	inspector Inspector
}

// Option configures Diff and Evolve.
type Option func(*options)

// IgnoreTables excludes tables, by database name, from both sides of the diff.
func IgnoreTables(names ...string) Option {
	return func(o *options) {
		for _, n := range names {
			o.ignore[n] = struct{}{}
		}
	}
}

// WithInspector replaces the default CatalogInspector.
func WithInspector(i Inspector) Option {
	return func(o *options) { o.inspector = i }
}

func buildOptions(opts []Option) *options {
	o := &options{ignore: make(map[string]struct{}), inspector: CatalogInspector{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Diff returns the statements needed to turn the live schema into the tables defined on
// db. It does not modify the database. Defined tables are compared in definition order.
//
// Example:
//
//	changes, err := evolve.Diff(ctx, db, evolve.IgnoreTables("schema_migrations"))
func Diff(ctx context.Context, db *core.Database, opts ...Option) ([]Change, error) {
	o := buildOptions(opts)
	var changes []Change
	err := db.Connection(ctx, func(ctx context.Context) error {
		c, err := db.Open(ctx)
		if err != nil {
			return err
		}
		defer c.Close()
		changes, err = diff(ctx, db, c, o)
		return err
	})
	return changes, err
}

// Evolve diffs the schema and executes the changes in order on one connection. It returns
// the executed changes.
func Evolve(ctx context.Context, db *core.Database, opts ...Option) ([]Change, error) {
	o := buildOptions(opts)
	var changes []Change
	err := db.Connection(ctx, func(ctx context.Context) error {
		c, err := db.Open(ctx)
		if err != nil {
			return err
		}
		defer c.Close()
		if changes, err = diff(ctx, db, c, o); err != nil {
			return err
		}
		return c.ExecuteAll(ctx, changes)
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

type plan struct {
	add     []*core.Table
	drop    []string
	renames map[string]string // old -> new
	keep    []*core.Table
}

func diff(ctx context.Context, db *core.Database, c *core.Connection, o *options) ([]Change, error) {
	b := c.Dialect()
	g, err := ddlFor(b)
	if err != nil {
		return nil, err
	}
	live, err := o.inspector.Inspect(ctx, c)
	if err != nil {
		return nil, core.WrapError(err, "evolve: inspect")
	}

	var defined []*core.Table
	for _, t := range db.Tables() {
		if _, skip := o.ignore[t.DBName()]; !skip {
			defined = append(defined, t)
		}
	}
	p, err := tableChanges(defined, live, o.ignore)
	if err != nil {
		return nil, err
	}
	log := db.Logger()

	var changes []Change
	for _, t := range p.add {
		log.Info("evolve: add table", "table", t.DBName())
		ch, err := createTable(g, b, t)
		if err != nil {
			return nil, err
		}
		changes = append(changes, ch)
	}
	for _, t := range p.add {
		for _, ix := range t.Indexes() {
			sql, err := g.createIndex(b.ForQuery(), ix)
			if err != nil {
				return nil, err
			}
			changes = append(changes, statement(sql))
		}
	}
	if !g.inlineForeignKeys() {
		for _, t := range p.add {
			for _, fk := range t.ForeignKeys() {
				if !fk.Fake() {
					changes = append(changes, addForeignKey(b, fk))
				}
			}
		}
	}

	olds := make([]string, 0, len(p.renames))
	for old := range p.renames {
		olds = append(olds, old)
	}
	sort.Strings(olds)
	for _, old := range olds {
		log.Info("evolve: rename table", "from", old, "to", p.renames[old])
		changes = append(changes, renameTable(b, old, p.renames[old]))
	}

	if live.Columns {
		previous := make(map[string]string, len(p.renames))
		for old, name := range p.renames {
			previous[name] = old
		}
		for _, t := range p.keep {
			from := t.DBName()
			if old, ok := previous[from]; ok {
				from = old
			}
			cols, err := columnChanges(g, b, t, live.Tables[from], log)
			if err != nil {
				return nil, err
			}
			changes = append(changes, cols...)
		}
	}

	for _, name := range p.drop {
		log.Info("evolve: drop table", "table", name)
		changes = append(changes, dropTable(b, name))
	}
	return changes, nil
}

// tableChanges splits the defined tables into added, renamed and kept ones and lists the
// live tables to drop.
func tableChanges(defined []*core.Table, live *Schema, ignore map[string]struct{}) (*plan, error) {
	definedNames := make(map[string]struct{}, len(defined))
	for _, t := range defined {
		definedNames[t.DBName()] = struct{}{}
	}
	toDelete := make(map[string]struct{})
	for name := range live.Tables {
		_, isDefined := definedNames[name]
		_, ignored := ignore[name]
		if !isDefined && !ignored {
			toDelete[name] = struct{}{}
		}
	}

	p := &plan{renames: make(map[string]string)}
	var added []*core.Table
	for _, t := range defined {
		if _, exists := live.Tables[t.DBName()]; exists {
			p.keep = append(p.keep, t)
			continue
		}
		added = append(added, t)
	}

	names := make([]string, len(added))
	akas := make([][]string, len(added))
	for i, t := range added {
		names[i] = t.DBName()
		akas[i] = t.Aka()
	}
	renames, err := matchRenames("table", names, akas, toDelete)
	if err != nil {
		return nil, err
	}
	for i, t := range added {
		if old, ok := renames[i]; ok {
			p.renames[old] = t.DBName()
			delete(toDelete, old)
			p.keep = append(p.keep, t)
			continue
		}
		p.add = append(p.add, t)
	}

	for name := range toDelete {
		p.drop = append(p.drop, name)
	}
	sort.Strings(p.drop)
	return p, nil
}

// matchRenames pairs names[i] with the single candidate among its akas[i] that is about
// to be removed. It fails when a name has several candidates or a candidate is claimed
// twice.
func matchRenames(what string, names []string, akas [][]string, removed map[string]struct{}) (map[int]string, error) {
	matches := make(map[int]string)
	claimedBy := make(map[string]string)
	for i, name := range names {
		var candidates []string
		for _, aka := range akas[i] {
			if _, ok := removed[aka]; ok && !slices.Contains(candidates, aka) {
				candidates = append(candidates, aka)
			}
		}
		switch len(candidates) {
		case 0:
			continue
		case 1:
		default:
			sort.Strings(candidates)
			return nil, fmt.Errorf("%w: %s %s has too many possible matches to rename: %s",
				ErrAmbiguousRename, what, name, strings.Join(candidates, ", "))
		}
		old := candidates[0]
		if other, dup := claimedBy[old]; dup {
			return nil, fmt.Errorf("%w: %s %s is claimed by both %s and %s",
				ErrAmbiguousRename, what, old, other, name)
		}
		claimedBy[old] = name
		matches[i] = old
	}
	return matches, nil
}

// columnChanges diffs the columns of a table present on both sides: renames through
// column akas, then adds, then drops.
func columnChanges(g ddl, b *dialects.Backend, t *core.Table, live []string, log logger.Logger) ([]Change, error) {
	liveSet := make(map[string]struct{}, len(live))
	for _, name := range live {
		liveSet[name] = struct{}{}
	}
	defined := make(map[string]struct{}, len(t.Columns()))
	var added []*core.Column
	for _, c := range t.Columns() {
		defined[c.DBName()] = struct{}{}
		if _, ok := liveSet[c.DBName()]; !ok {
			added = append(added, c)
		}
	}
	removed := make(map[string]struct{})
	for _, name := range live {
		if _, ok := defined[name]; !ok {
			removed[name] = struct{}{}
		}
	}

	names := make([]string, len(added))
	akas := make([][]string, len(added))
	for i, c := range added {
		names[i] = t.DBName() + "." + c.DBName()
		akas[i] = c.Aka()
	}
	renames, err := matchRenames("column", names, akas, removed)
	if err != nil {
		return nil, err
	}

	var changes []Change
	newCols := make(map[*core.Column]struct{})
	for i, c := range added {
		if old, ok := renames[i]; ok {
			log.Info("evolve: rename column", "table", t.DBName(), "from", old, "to", c.DBName())
			changes = append(changes, renameColumn(b, t.DBName(), old, c.DBName()))
			delete(removed, old)
		}
	}
	for i, c := range added {
		if _, ok := renames[i]; ok {
			continue
		}
		log.Info("evolve: add column", "table", t.DBName(), "column", c.DBName())
		ch, err := addColumn(g, b, c)
		if err != nil {
			return nil, err
		}
		changes = append(changes, ch)
		newCols[c] = struct{}{}
	}
	if !g.inlineForeignKeys() {
		for _, fk := range t.ForeignKeys() {
			if !fk.Fake() && allIn(fk.Columns(), newCols) {
				changes = append(changes, addForeignKey(b, fk))
			}
		}
	}
	for _, name := range live {
		if _, ok := removed[name]; ok {
			log.Info("evolve: drop column", "table", t.DBName(), "column", name)
			changes = append(changes, dropColumn(b, t.DBName(), name))
		}
	}
	return changes, nil
}

func allIn(cols []*core.Column, set map[*core.Column]struct{}) bool {
	for _, c := range cols {
		if _, ok := set[c]; !ok {
			return false
		}
	}
	return true
}
