package conn

import (
	"context"
	"time"

	"github.com/coregx/dqo/internal/logger"
	"github.com/coregx/dqo/internal/tracer"
)

// Event describes one executed statement. It is passed to Hook callbacks.
type Event struct {
	SQL          string
	Args         []interface{}
	Duration     time.Duration
	RowsAffected int64
	Err          error
	Operation    string
}

// Hook is invoked after every statement, e.g. for metrics.
type Hook func(ctx context.Context, e Event)

// Options are shared by all connection sources.
type Options struct {
	// Database is the system name reported in logs and spans (postgres, sqlite, ...).
	Database  string
	Logger    logger.Logger
	Tracer    tracer.Tracer
	Sanitizer *logger.Sanitizer
	Hook      Hook
	// StmtCache is the per-connection prepared statement capacity, 0 disables caching.
	StmtCache int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = &logger.NoopLogger{}
	}
	if o.Tracer == nil {
		o.Tracer = &tracer.NoopTracer{}
	}
	if o.Sanitizer == nil {
		o.Sanitizer = logger.NewSanitizer(nil)
	}
	return o
}

// observer wraps one statement with a span, a log line and the hook.
type observer struct {
	opts  Options
	name  string
	query string
	args  []interface{}
	start time.Time
	span  tracer.Span
}

func (o Options) observe(ctx context.Context, spanName, query string, args []interface{}) (context.Context, *observer) {
	ctx, span := o.Tracer.StartSpan(ctx, spanName)
	return ctx, &observer{
		opts:  o,
		name:  spanName,
		query: query,
		args:  args,
		start: time.Now(),
		span:  span,
	}
}

func (ob *observer) done(ctx context.Context, rowsAffected int64, err error) {
	elapsed := time.Since(ob.start)
	op := tracer.DetectOperation(ob.query)
	params := ob.opts.Sanitizer.FormatParams(ob.opts.Sanitizer.MaskParams(ob.query, ob.args))

	if err != nil {
		ob.opts.Logger.Error("statement failed",
			"sql", ob.query,
			"params", params,
			"duration_ms", elapsed.Milliseconds(),
			"database", ob.opts.Database,
			"error", err,
		)
	} else {
		ob.opts.Logger.Debug("statement executed",
			"sql", ob.query,
			"params", params,
			"duration_ms", elapsed.Milliseconds(),
			"rows_affected", rowsAffected,
			"database", ob.opts.Database,
		)
	}

	tracer.AddQueryAttributes(ob.span, &tracer.QueryMetadata{
		SQL:          ob.query,
		Args:         ob.args,
		Duration:     elapsed,
		RowsAffected: rowsAffected,
		Error:        err,
		Database:     ob.opts.Database,
		Operation:    op,
		Table:        tracer.DetectTable(ob.query),
	})
	ob.span.End()

	if ob.opts.Hook != nil {
		ob.opts.Hook(ctx, Event{
			SQL:          ob.query,
			Args:         ob.args,
			Duration:     elapsed,
			RowsAffected: rowsAffected,
			Err:          err,
			Operation:    op,
		})
	}
}
