package tracing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/euskotrips/euskotrips/internal/middleware"
	"github.com/euskotrips/euskotrips/internal/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestEndToEndTracing checks that handler and store spans join the server
// span's trace.
func TestEndToEndTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, endRank := tracing.StartSpan(r.Context(), "ranking.rank")
		tracing.SetAttributes(ctx, attribute.String("ranking.mode", "personalized"))

		_, endQuery := tracing.StartDBSpan(ctx, "postgresql", "favoritos", tracing.DBOperationQuery)
		endQuery(nil)

		tracing.AddEvent(ctx, "profile_built", attribute.Int("favorites", 3))
		endRank(nil)
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	middleware.Tracing(tracing.ServiceAPI)(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rank", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	spans := recorder.Ended()
	if len(spans) != 3 {
		for i, span := range spans {
			t.Logf("  span %d: %s", i, span.Name())
		}
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}

	names := make(map[string]bool)
	traceID := spans[0].SpanContext().TraceID()
	for _, span := range spans {
		names[span.Name()] = true
		if span.SpanContext().TraceID() != traceID {
			t.Errorf("span %s has trace ID %s, want %s", span.Name(), span.SpanContext().TraceID(), traceID)
		}
	}
	for _, name := range []string{"GET /rank", "ranking.rank", "query favoritos"} {
		if !names[name] {
			t.Errorf("missing span %s", name)
		}
	}
}

// TestTracingDisabled checks the helpers are safe with the no-op provider.
func TestTracingDisabled(t *testing.T) {
	provider, err := tracing.NewProvider(tracing.Config{ServiceName: tracing.ServiceIndexer}, nil)
	if err != nil {
		t.Fatalf("failed to create disabled provider: %v", err)
	}
	if provider.IsEnabled() {
		t.Error("expected tracing to be disabled")
	}

	ctx, endSpan := tracing.StartSpan(context.Background(), "ingest.run")
	tracing.SetAttributes(ctx, attribute.String("key", "value"))
	tracing.AddEvent(ctx, "test-event")
	endSpan(nil)
}
