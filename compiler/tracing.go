package compiler

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// tracer is the package-wide span source for LowerModule. It is always
// the globally configured TracerProvider's tracer -- LowerModule has no
// incoming context to thread a caller-scoped one through, the same way
// the teacher's own EnrichEmitter falls through to an inactive span
// rather than failing when no provider is configured.
var tracer = otel.Tracer("github.com/chigraph/chi/compiler")

// nodesCompiled counts every node.Instance a FunctionCompiler allocates
// a nodeCompiler for, across every LowerModule call in the process -- the
// compile-time analog of the teacher's own per-node runtime counters.
var nodesCompiled metric.Int64Counter

func init() {
	var err error
	nodesCompiled, err = otel.Meter("github.com/chigraph/chi/compiler").
		Int64Counter("chi.nodes.compiled", metric.WithDescription("nodes emitted by FunctionCompiler"))
	if err != nil {
		// A no-op instrument is a valid metric.Int64Counter and simply
		// drops every recording -- never fatal to fail to obtain the
		// real one.
		nodesCompiled = noop.Int64Counter{}
	}
}

// startModuleSpan opens a span covering one module's full lowering
// (dependency recursion, validation, per-function compilation, and
// verification), mirroring the run-level span the teacher's
// otel.TracingHandler opens per workflow execution.
func startModuleSpan(modulePath string) (context.Context, oteltrace.Span) {
	return tracer.Start(context.Background(), "compiler.LowerModule",
		oteltrace.WithAttributes(attribute.String("chigraph.module", modulePath)))
}

// startFunctionSpan opens a child span covering one function's
// compilation, mirroring the node-level span the teacher's
// TracingHandler opens per workflow node.
func startFunctionSpan(ctx context.Context, modulePath, fnName string) (context.Context, oteltrace.Span) {
	return tracer.Start(ctx, "compiler.compileFunction",
		oteltrace.WithAttributes(
			attribute.String("chigraph.module", modulePath),
			attribute.String("chigraph.function", fnName),
		))
}

// endSpan records err on span (if non-nil) before ending it, matching
// the status convention the go.opentelemetry.io/otel/trace API expects
// of span-wrapped work.
func endSpan(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
