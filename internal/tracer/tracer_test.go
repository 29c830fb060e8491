package tracer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNoopTracer(t *testing.T) {
	tracer := &NoopTracer{}
	ctx := context.Background()

	// Should not panic
	_, span := tracer.StartSpan(ctx, SpanExecute)
	assert.NotNil(t, span)

	span.SetAttributes(attribute.String("key", "value"))
	span.RecordError(errors.New("test error"))
	span.SetStatus(codes.Error, "error")
	span.End()
}

func TestNoopSpan(t *testing.T) {
	span := &NoopSpan{}

	// Should not panic
	span.SetAttributes(
		attribute.String("string", "value"),
		attribute.Int("int", 42),
		attribute.Bool("bool", true),
	)
	span.RecordError(errors.New("test error"))
	span.SetStatus(codes.Error, "error")
	span.End()
}

func TestOtelTracer(t *testing.T) {
	// Create in-memory exporter for testing
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)

	otelTracer := otel.Tracer("test")
	tracer := NewOtelTracer(otelTracer)

	ctx := context.Background()
	ctx, span := tracer.StartSpan(ctx, SpanExecute)
	assert.NotNil(t, span)

	span.SetAttributes(attribute.String("key", "value"))
	span.End()

	// Force flush
	_ = tp.ForceFlush(ctx)

	// Verify span was recorded
	spans := exporter.GetSpans()
	assert.Len(t, spans, 1)
	assert.Equal(t, SpanExecute, spans[0].Name)
	assert.Equal(t, "value", spans[0].Attributes[0].Value.AsString())
}

func TestOtelSpan_SetAttributes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	otelTracer := otel.Tracer("test")
	tracer := NewOtelTracer(otelTracer)

	ctx := context.Background()
	ctx, span := tracer.StartSpan(ctx, "test.attributes")

	span.SetAttributes(
		attribute.String("db.system", "postgres"),
		attribute.String("db.operation", "SELECT"),
		attribute.Int64("db.rows_affected", 42),
		attribute.Float64("db.duration_ms", 15.5),
	)
	span.End()

	_ = tp.ForceFlush(ctx)

	spans := exporter.GetSpans()
	assert.Len(t, spans, 1)
	attrs := spans[0].Attributes

	// Find attributes by key
	attrMap := make(map[string]interface{})
	for _, attr := range attrs {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}

	assert.Equal(t, "postgres", attrMap["db.system"])
	assert.Equal(t, "SELECT", attrMap["db.operation"])
	assert.Equal(t, int64(42), attrMap["db.rows_affected"])
	assert.Equal(t, 15.5, attrMap["db.duration_ms"])
}

func TestOtelSpan_RecordError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	otelTracer := otel.Tracer("test")
	tracer := NewOtelTracer(otelTracer)

	ctx := context.Background()
	ctx, span := tracer.StartSpan(ctx, "test.error")

	testErr := errors.New("database connection failed")
	span.RecordError(testErr)
	span.SetStatus(codes.Error, testErr.Error())
	span.End()

	_ = tp.ForceFlush(ctx)

	spans := exporter.GetSpans()
	assert.Len(t, spans, 1)
	assert.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestAddQueryAttributes_Success(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	otelTracer := otel.Tracer("test")
	tracer := NewOtelTracer(otelTracer)

	ctx := context.Background()
	ctx, span := tracer.StartSpan(ctx, SpanFetch)

	meta := &QueryMetadata{
		SQL:          "select id,email from users where id=$1",
		Args:         []interface{}{123},
		Duration:     15 * time.Millisecond,
		RowsAffected: 1,
		Error:        nil,
		Database:     "postgres",
		Operation:    "SELECT",
		Table:        "users",
	}

	AddQueryAttributes(span, meta)
	span.End()

	_ = tp.ForceFlush(ctx)

	spans := exporter.GetSpans()
	assert.Len(t, spans, 1)

	attrMap := make(map[string]interface{})
	for _, attr := range spans[0].Attributes {
		attrMap[string(attr.Key)] = attr.Value.AsInterface()
	}

	assert.Equal(t, "postgres", attrMap["db.system"])
	assert.Equal(t, "select id,email from users where id=$1", attrMap["db.statement"])
	assert.Equal(t, "SELECT", attrMap["db.operation"])
	assert.Equal(t, "users", attrMap["db.table"])
	assert.Equal(t, int64(1), attrMap["db.rows_affected"])
	assert.InDelta(t, 15.0, attrMap["db.duration_ms"], 0.1)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
}

func TestAddQueryAttributes_WithError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	otelTracer := otel.Tracer("test")
	tracer := NewOtelTracer(otelTracer)

	ctx := context.Background()
	ctx, span := tracer.StartSpan(ctx, SpanExecute)

	testErr := errors.New("syntax error")
	meta := &QueryMetadata{
		SQL:       "select id form users", // typo
		Args:      []interface{}{},
		Duration:  5 * time.Millisecond,
		Error:     testErr,
		Database:  "postgres",
		Operation: "SELECT",
	}

	AddQueryAttributes(span, meta)
	span.End()

	_ = tp.ForceFlush(ctx)

	spans := exporter.GetSpans()
	assert.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "syntax error", spans[0].Status.Description)
	assert.Len(t, spans[0].Events, 1) // Error event
}

func TestDetectOperation(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{"select", "select col1,col2 from something", "SELECT"},
		{"leading whitespace", "  \n  select col1 from something", "SELECT"},
		{"cte", "with s as (select 1) select * from s", "SELECT"},
		{"insert", "insert into something (col1) values (?) returning col1", "INSERT"},
		{"update", "update something set col1=? where col1=?", "UPDATE"},
		{"delete", "delete from something where col1=?", "DELETE"},
		{"create", "create table a (id serial not null, primary key (id))", "CREATE"},
		{"create index", "create unique index on a (col1)", "CREATE"},
		{"alter", "alter table b add foreign key (a_id) references a (id)", "ALTER"},
		{"drop", "drop table a", "DROP"},
		{"unknown", "explain select * from users", "UNKNOWN"},
		{"mixed case", "InSeRt INTO users VALUES (?)", "INSERT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectOperation(tt.sql))
		})
	}
}

func TestDetectTable(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"select col1 from something where col1=?", "something"},
		{"select s1.col1 from something s1 left join a a1 on s1.a_id=a1.id", "something"},
		{"insert into something (col1) values (?)", "something"},
		{"update something set col1=?", "something"},
		{"delete from \"order\" where id=$1", "order"},
		{"alter table b add foreign key (a_id) references a (id)", "b"},
		{"select count(1) from (select 1) s", ""},
		{"select 1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTable(tt.sql))
		})
	}
}

func BenchmarkNoopTracer(b *testing.B) {
	tracer := &NoopTracer{}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tracer.StartSpan(ctx, SpanExecute)
		span.SetAttributes(attribute.String("key", "value"))
		span.End()
	}
}

func BenchmarkOtelTracer(b *testing.B) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	otelTracer := otel.Tracer("benchmark")
	tracer := NewOtelTracer(otelTracer)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tracer.StartSpan(ctx, SpanExecute)
		span.SetAttributes(attribute.String("key", "value"))
		span.End()
	}
}

func BenchmarkAddQueryAttributes(b *testing.B) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	otelTracer := otel.Tracer("benchmark")
	tracer := NewOtelTracer(otelTracer)
	ctx := context.Background()

	meta := &QueryMetadata{
		SQL:          "select id,email from users where id=$1",
		Args:         []interface{}{123},
		Duration:     15 * time.Millisecond,
		RowsAffected: 1,
		Database:     "postgres",
		Operation:    "SELECT",
		Table:        "users",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := tracer.StartSpan(ctx, "query")
		AddQueryAttributes(span, meta)
		span.End()
	}
}
