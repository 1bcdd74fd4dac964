// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import "context"

// ActorKey is the context key for the actor recorded in the change history.
type ActorKey struct{}

// OperationKey is the context key for the id attached to one engine call.
type OperationKey struct{}

// WithActor returns a context carrying the acting user or process name.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey{}, actor)
}

// ActorFromContext returns the actor, or empty string if not set.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ActorKey{}).(string); ok {
		return v
	}
	return ""
}

// WithOperationID returns a context carrying an operation id for log correlation.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, OperationKey{}, id)
}

// OperationIDFromContext returns the operation id, or empty string if not set.
func OperationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(OperationKey{}).(string); ok {
		return v
	}
	return ""
}
