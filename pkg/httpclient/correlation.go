package httpclient

import "context"

type correlationIDKey struct{}

// WithCorrelationID returns a context carrying the given correlation ID,
// propagated onto outgoing requests made with a client from New.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the correlation ID stashed by
// WithCorrelationID, or "" if none was set.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
