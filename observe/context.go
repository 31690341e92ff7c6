package observe

import "context"

type correlationIDKey struct{}

// WithCorrelationID attaches a run's correlation identifier to ctx. Every
// Logger method and the node-execution middleware pull it back out via
// CorrelationIDFromContext so downstream log lines and span attributes
// carry it without the caller threading it through explicitly.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the correlation id attached to ctx, or
// "" if none was attached.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
