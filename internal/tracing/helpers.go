package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/euskotrips/euskotrips"

// Store systems reported in db.system.
const (
	SystemPostgres      = "postgresql"
	SystemSQLite        = "sqlite"
	SystemElasticsearch = "elasticsearch"
)

// DBOperation names the kind of store call a span covers.
type DBOperation string

const (
	DBOperationQuery  DBOperation = "query"
	DBOperationExec   DBOperation = "exec"
	DBOperationSearch DBOperation = "search"
	DBOperationMGet   DBOperation = "mget"
	DBOperationBulk   DBOperation = "bulk"
)

// StartDBSpan starts a client span for a call to a store. collection is the
// table or index name and may be empty.
//
//	ctx, endSpan := tracing.StartDBSpan(ctx, tracing.SystemElasticsearch, "destinos", tracing.DBOperationSearch)
//	defer func() { endSpan(err) }()
func StartDBSpan(ctx context.Context, system, collection string, operation DBOperation) (context.Context, func(error)) {
	name := string(operation)
	attrs := []attribute.KeyValue{
		attribute.String("db.system", system),
		attribute.String("db.operation", string(operation)),
	}
	if collection != "" {
		name += " " + collection
		attrs = append(attrs, attribute.String("db.collection.name", collection))
	}

	ctx, span := otel.Tracer(instrumentationName+"/store").Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, endFunc(span)
}

// StartSpan starts an internal span.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, endFunc(span)
}

// endFunc ends span, marking it failed when err is non-nil.
func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
