package compiler

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestTracerProvider returns a TracerProvider backed by an in-memory
// span exporter, installed as the process-wide default so the package's
// own tracer (resolved against whatever provider is current at Start
// time) reports into it.
func newTestTracerProvider() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return exporter, tp
}

func TestLowerModuleEmitsAModuleSpanAndOneFunctionSpanPerFunction(t *testing.T) {
	exporter, tp := newTestTracerProvider()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	mod, irctx := buildMainModule(t)

	if _, _, err := LowerModule(irctx, mod, nil, nil); err != nil {
		t.Fatalf("LowerModule: %v", err)
	}
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}

	spans := exporter.GetSpans()
	var moduleSpans, fnSpans int
	for _, s := range spans.Snapshots() {
		switch s.Name() {
		case "compiler.LowerModule":
			moduleSpans++
		case "compiler.compileFunction":
			fnSpans++
		}
	}
	if moduleSpans != 1 {
		t.Fatalf("expected exactly 1 compiler.LowerModule span, got %d (spans: %d total)", moduleSpans, len(spans))
	}
	if fnSpans != len(mod.Functions()) {
		t.Fatalf("expected %d compiler.compileFunction span(s), got %d", len(mod.Functions()), fnSpans)
	}
}

func TestLowerModuleFunctionSpanIsChildOfModuleSpan(t *testing.T) {
	exporter, tp := newTestTracerProvider()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	mod, irctx := buildMainModule(t)
	if _, _, err := LowerModule(irctx, mod, nil, nil); err != nil {
		t.Fatalf("LowerModule: %v", err)
	}
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush: %v", err)
	}

	var moduleSpanID, fnParentID string
	for _, s := range exporter.GetSpans().Snapshots() {
		switch s.Name() {
		case "compiler.LowerModule":
			moduleSpanID = s.SpanContext().SpanID().String()
		case "compiler.compileFunction":
			fnParentID = s.Parent().SpanID().String()
		}
	}
	if moduleSpanID == "" || fnParentID == "" {
		t.Fatal("expected to find both a module span and a function span")
	}
	if moduleSpanID != fnParentID {
		t.Fatalf("expected compiler.compileFunction's parent span id %q to equal compiler.LowerModule's span id %q", fnParentID, moduleSpanID)
	}
}
