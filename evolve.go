package dqo

import (
	"context"

	"github.com/coregx/dqo/internal/evolve"
)

type (
	// EvolveOption configures Diff and Evolve.
	EvolveOption = evolve.Option
	// Inspector reads the live schema.
	Inspector = evolve.Inspector
	// Schema is the live schema reported by an Inspector.
	Schema = evolve.Schema
	// CatalogInspector reads the live schema from the system catalog.
	CatalogInspector = evolve.CatalogInspector
	// AtlasInspector reads the live schema with ariga.io/atlas.
	AtlasInspector = evolve.AtlasInspector
)

var (
	// IgnoreTables excludes tables from Diff and Evolve.
	IgnoreTables = evolve.IgnoreTables
	// WithInspector replaces the default CatalogInspector.
	WithInspector = evolve.WithInspector
	// ErrAmbiguousRename is returned when a rename cannot be decided from the akas.
	ErrAmbiguousRename = evolve.ErrAmbiguousRename
)

// Diff returns the DDL needed to bring the live schema in line with the tables bound
// to db, without running it.
func Diff(ctx context.Context, db *Database, opts ...EvolveOption) ([]Change, error) {
	return evolve.Diff(ctx, db, opts...)
}

// Evolve runs the changes reported by Diff and returns them.
func Evolve(ctx context.Context, db *Database, opts ...EvolveOption) ([]Change, error) {
	return evolve.Evolve(ctx, db, opts...)
}
