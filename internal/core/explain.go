package core

import (
	"context"

	"github.com/coregx/dqo/internal/analyzer"
	"github.com/coregx/dqo/internal/dialects"
)

// Plan is the execution plan reported by Explain.
type Plan = analyzer.Plan

// Explain returns the plan the database would use for the query, without running it.
// Supported on PostgreSQL, MySQL and SQLite.
func (q *Query) Explain(ctx context.Context) (*Plan, error) {
	return q.explain(ctx, analyzer.Explain)
}

// ExplainAnalyze runs the query and returns its plan with actual row counts and timing.
// Only PostgreSQL supports it. Writes are applied, so wrap them in a rolled back
// Transaction when only the plan is wanted.
func (q *Query) ExplainAnalyze(ctx context.Context) (*Plan, error) {
	return q.explain(ctx, analyzer.ExplainAnalyze)
}

type explainFunc func(ctx context.Context, f analyzer.Fetcher, b *dialects.Backend, sql string, args []interface{}) (*Plan, error)

func (q *Query) explain(ctx context.Context, fn explainFunc) (*Plan, error) {
	if q.err != nil {
		return nil, q.err
	}
	c, release, _, err := q.acquire(ctx, syncMode)
	if err != nil {
		return nil, err
	}
	defer release()

	sqlText, args, err := q.RenderFor(c.dialect)
	if err != nil {
		return nil, err
	}
	plan, err := fn(ctx, c, c.dialect, sqlText, args)
	if err != nil {
		return nil, WrapError(err, "dqo: explain")
	}
	return plan, nil
}
