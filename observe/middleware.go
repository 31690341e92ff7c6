package observe

import (
	"context"
	"time"
)

// ExecuteFunc is the signature the executor wraps to run one node
// invocation with the node's resolved input set.
type ExecuteFunc func(ctx context.Context, node NodeMeta, input any) (any, error)

// Middleware wraps node execution with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans and correlation ids.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
//   - Ownership: Input/output values are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps an ExecuteFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, node NodeMeta, input any) (any, error) {
		ctx, span := m.tracer.StartSpan(ctx, node)

		start := time.Now()
		result, err := fn(ctx, node, input)
		duration := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordNodeExecution(ctx, node, duration, err)

		nodeLogger := m.logger.WithNode(node)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			nodeLogger.Error(ctx, "node execution failed", fields...)
		} else {
			nodeLogger.Info(ctx, "node execution completed", fields...)
		}

		return result, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
// This is a convenience function for common use cases.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	tracer := newTracer(obs.Tracer())

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(tracer, metrics, obs.Logger()), nil
}
