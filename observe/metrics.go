package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records per-node execution metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordNodeExecution records one node invocation with its outcome
	// and wall-clock duration.
	RecordNodeExecution(ctx context.Context, meta NodeMeta, duration time.Duration, err error)

	// RecordGauge sets an arbitrary gauge-shaped observation, used by the
	// emergency controller and circuit breaker registry to publish level
	// and state values that don't fit the per-node counters below.
	RecordGauge(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	gaugesMu     sync.Mutex
	gauges       map[string]metric.Float64Gauge
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"node.exec.total",
		metric.WithDescription("Total number of node invocations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"node.exec.errors",
		metric.WithDescription("Total number of node invocation failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"node.exec.duration_ms",
		metric.WithDescription("Node invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		gauges:       make(map[string]metric.Float64Gauge),
	}, nil
}

// RecordNodeExecution records metrics for a node invocation.
func (m *metricsImpl) RecordNodeExecution(ctx context.Context, meta NodeMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("node.id", meta.ID),
		attribute.String("node.kind", meta.Kind),
	}
	if meta.Category != "" {
		attrs = append(attrs, attribute.String("node.category", meta.Category))
	}

	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordGauge lazily creates (or reuses) a named gauge instrument and
// records value against it.
func (m *metricsImpl) RecordGauge(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	m.gaugesMu.Lock()
	g, ok := m.gauges[name]
	if !ok {
		var err error
		g, err = m.meter.Float64Gauge(name)
		if err != nil {
			m.gaugesMu.Unlock()
			return
		}
		m.gauges[name] = g
	}
	m.gaugesMu.Unlock()
	g.Record(ctx, value, metric.WithAttributes(attrs...))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordNodeExecution(ctx context.Context, meta NodeMeta, duration time.Duration, err error) {
}

func (m *noopMetrics) RecordGauge(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
}
