package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// NodeMeta carries the identity of a graph node being executed, used to
// label spans, metrics, and log lines consistently.
type NodeMeta struct {
	ID       string // Node id, unique within its graph.
	Kind     string // Registered node kind (resolves a node.Factory).
	Category string // NodeCategory as a string ("source", "transform", "sink", "executor").
}

// SpanName returns the deterministic span name for this node.
// Format: node.exec.<category>.<kind>, or node.exec.<kind> if category is empty.
func (m NodeMeta) SpanName() string {
	if m.Category != "" {
		return "node.exec." + m.Category + "." + m.Kind
	}
	return "node.exec." + m.Kind
}

// Tracer wraps OpenTelemetry tracing with node-execution span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan returns a child of ctx carrying the new span; it returns no error.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a node invocation.
	StartSpan(ctx context.Context, meta NodeMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// newTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with node metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta NodeMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("node.id", meta.ID),
		attribute.String("node.kind", meta.Kind),
		attribute.Bool("node.error", false), // updated in EndSpan if the node fails
	}
	if meta.Category != "" {
		attrs = append(attrs, attribute.String("node.category", meta.Category))
	}
	if cid := CorrelationIDFromContext(ctx); cid != "" {
		attrs = append(attrs, attribute.String("run_id", cid))
	}

	ctx, span := t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("node.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta NodeMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
