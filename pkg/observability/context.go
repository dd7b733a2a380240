package observability

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	correlationIDCtxKey ctxKey = iota
	requestIDCtxKey
	operationCtxKey
	actorCtxKey
)

// Log attribute keys added from the context.
const (
	CorrelationIDKey = "correlation_id"
	RequestIDKey     = "request_id"
	OperationKey     = "operation"
	ActorKey         = "actor_id"
)

func withValue(ctx context.Context, key ctxKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// WithCorrelationID stores a correlation id. An empty id is replaced by a new UUID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return withValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext returns the correlation id or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDCtxKey)
}

// WithRequestID stores a request id. An empty id is replaced by a new UUID.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return withValue(ctx, requestIDCtxKey, id)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDCtxKey)
}

// WithOperation names the job or command being run.
func WithOperation(ctx context.Context, operation string) context.Context {
	return withValue(ctx, operationCtxKey, operation)
}

// OperationFromContext returns the operation name or "".
func OperationFromContext(ctx context.Context) string {
	return stringValue(ctx, operationCtxKey)
}

// WithActor records who is acting, usually an administrator id.
func WithActor(ctx context.Context, actorID string) context.Context {
	return withValue(ctx, actorCtxKey, actorID)
}

// ActorFromContext returns the acting user id or "".
func ActorFromContext(ctx context.Context) string {
	return stringValue(ctx, actorCtxKey)
}

// NewRequestContext starts a request: a fresh request id and the given
// correlation id, or a new one when parent is empty.
func NewRequestContext(ctx context.Context, parentCorrelationID string) context.Context {
	return WithCorrelationID(WithRequestID(ctx, ""), parentCorrelationID)
}
