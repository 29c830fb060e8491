// Package analyzer runs EXPLAIN for rendered statements and folds the backend specific
// output into one Plan. PostgreSQL, MySQL and SQLite are supported.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coregx/dqo/internal/conn"
	"github.com/coregx/dqo/internal/dialects"
)

// Error messages
var (
	ErrUnsupported        = errors.New("analyzer: explain is not supported for this dialect")
	ErrAnalyzeUnsupported = errors.New("analyzer: explain analyze is not supported for this dialect")
)

// Plan is the execution plan of one statement.
type Plan struct {
	Cost          float64 // estimated cost in backend units, 0 on SQLite
	EstimatedRows int64
	ActualRows    int64         // analyze only
	ActualTime    time.Duration // analyze only

	UsesIndex bool
	IndexName string // first index seen in the plan
	FullScan  bool

	Raw     string
	Backend string

	BuffersHit   int64 // PostgreSQL
	BuffersMiss  int64 // PostgreSQL
	RowsExamined int64 // MySQL
	RowsProduced int64 // MySQL
}

// Fetcher runs a statement returning rows. *core.Connection implements it.
type Fetcher interface {
	Fetch(ctx context.Context, sql string, args ...interface{}) (conn.Rows, error)
}

type explainer interface {
	explain(ctx context.Context, f Fetcher, sql string, args []interface{}, analyze bool) (*Plan, error)
}

func explainerFor(b *dialects.Backend) (explainer, error) {
	switch {
	case b.Is(dialects.Postgres):
		return postgresExplainer{}, nil
	case b.Is(dialects.MySQL):
		return mysqlExplainer{}, nil
	case b.Is(dialects.SQLite):
		return sqliteExplainer{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, b.Name())
}

// Explain returns the estimated plan of sql without running it.
func Explain(ctx context.Context, f Fetcher, b *dialects.Backend, sql string, args []interface{}) (*Plan, error) {
	e, err := explainerFor(b)
	if err != nil {
		return nil, err
	}
	return e.explain(ctx, f, sql, args, false)
}

// ExplainAnalyze runs sql and returns its plan with actual figures. Only PostgreSQL
// supports it.
func ExplainAnalyze(ctx context.Context, f Fetcher, b *dialects.Backend, sql string, args []interface{}) (*Plan, error) {
	e, err := explainerFor(b)
	if err != nil {
		return nil, err
	}
	return e.explain(ctx, f, sql, args, true)
}

// fetchString reads the single text value returned by a JSON explain.
func fetchString(ctx context.Context, f Fetcher, sql string, args []interface{}) (string, error) {
	rows, err := f.Fetch(ctx, sql, args...)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var out string
	if rows.Next() {
		if err := rows.Scan(&out); err != nil {
			return "", fmt.Errorf("analyzer: scan explain output: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if out == "" {
		return "", errors.New("analyzer: empty explain output")
	}
	return out, nil
}

func setIndex(p *Plan, name string) {
	p.UsesIndex = true
	if p.IndexName == "" {
		p.IndexName = name
	}
}
