// Package observe provides the structured logging, tracing, and metrics
// surface shared by every workflow engine component.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The executor wires the Observer into its node
// invocation loop via Middleware; other components (state, eventbus,
// emergency) take a Logger and, where relevant, a Metrics directly.
//
// # Overview
//
// observe provides three observability pillars:
//   - Tracing: OpenTelemetry spans per node invocation
//   - Metrics: Execution counters, duration histograms, and ad hoc gauges
//   - Logging: Structured logging (console or JSON) with automatic field
//     redaction and correlation id propagation
//
// # Core Components
//
//   - [Observer]: Main facade providing Tracer, Meter, and Logger access
//   - [Tracer]: Span creation with node metadata as span attributes
//   - [Metrics]: Records execution counts, errors, duration, and gauges
//   - [Logger]: Structured logging with sensitive field redaction
//   - [Middleware]: Wraps ExecuteFunc with complete observability
//
// # Correlation propagation
//
// Every event and log line produced during a run carries the run's
// correlation identifier (its run id). The engine does not rely on an
// implicit task-local carrier: [WithCorrelationID] attaches the id to a
// context.Context, and every [Logger] method together with [Tracer.StartSpan]
// pull it back out via [CorrelationIDFromContext] automatically. Nested node
// invocations inherit it because they receive a context derived from the
// run's own context.
//
// # Quick Start
//
//	cfg := observe.Config{
//	    ServiceName: "fluxgraph",
//	    Version:     "1.0.0",
//	    Tracing:     observe.TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 1.0},
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info", Format: "console"},
//	}
//
//	obs, err := observe.NewObserver(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer obs.Shutdown(ctx)
//
//	mw, _ := observe.MiddlewareFromObserver(obs)
//	wrappedExec := mw.Wrap(nodeExecuteFunc)
//
//	result, err := wrappedExec(ctx, nodeMeta, input)
//
// # Telemetry Details
//
// Tracing creates spans with deterministic names:
//   - With category: "node.exec.<category>.<kind>" (e.g., "node.exec.source.http_poll")
//   - Without category: "node.exec.<kind>"
//
// Span attributes include node.id, node.kind, node.category (if set),
// run_id (if attached to the context), and node.error.
//
// Metrics recorded:
//   - node.exec.total (counter): Total invocations by node
//   - node.exec.errors (counter): Total failures by node
//   - node.exec.duration_ms (histogram): Duration distribution in milliseconds
//
// [Metrics.RecordGauge] additionally backs ad hoc gauges published by other
// components, such as circuit breaker state and emergency level.
//
// # Sensitive Field Redaction
//
// The logger automatically redacts these fields to prevent credential leakage:
//   - input, inputs
//   - password, secret, token
//   - api_key, apiKey, credential
//
// See [RedactedFields] for the complete list.
//
// # Exporter Configuration
//
// Tracing exporters:
//   - "otlp": OTLP gRPC (requires OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT)
//   - "jaeger": Jaeger via OTLP (requires OTEL_EXPORTER_JAEGER_ENDPOINT)
//   - "stdout": Console output for development
//   - "none" or "": Disabled (no-op)
//
// Metrics exporters:
//   - "otlp": OTLP gRPC (requires OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT)
//   - "prometheus": Prometheus scrape endpoint
//   - "stdout": Console output for development
//   - "none" or "": Disabled (no-op)
//
// # Thread Safety
//
// All exported types are safe for concurrent use after construction:
//   - [Observer]: Tracer(), Meter(), Logger() are safe; Shutdown() is idempotent
//   - [Tracer]: StartSpan() and EndSpan() are safe for concurrent use
//   - [Metrics]: RecordNodeExecution() and RecordGauge() are safe for concurrent use
//   - [Logger]: All logging methods are mutex-protected
//   - [Middleware]: Wrap() returns a thread-safe ExecuteFunc
//
// # Error Handling
//
// Configuration errors:
//   - [ErrMissingServiceName]: Config.ServiceName is empty
//   - [ErrInvalidSamplePct]: Tracing.SamplePct not in [0.0, 1.0]
//   - [ErrInvalidTracingExporter]: Unknown tracing exporter name
//   - [ErrInvalidMetricsExporter]: Unknown metrics exporter name
//   - [ErrInvalidLogLevel]: Unknown log level
//
// Exporter errors:
//   - [ErrEndpointNotConfigured]: Required endpoint env var not set
//
// Runtime errors:
//   - [ErrNilObserver]: Nil Observer passed to function
//   - [ErrMissingNodeID]: NodeMeta.ID is empty
package observe
