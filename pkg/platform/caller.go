package platform

import (
	"context"
	"fmt"
)

type callerKey struct{}

// WithCallerID returns a context carrying the client ID of the caller of the
// in-flight request. Negative IDs identify non-secure callers.
func WithCallerID(ctx context.Context, id int32) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// CallerIDFromContext returns the caller set by WithCallerID.
func CallerIDFromContext(ctx context.Context) (int32, bool) {
	id, ok := ctx.Value(callerKey{}).(int32)
	return id, ok
}

// CallerIdentifier reports who issued the in-flight request.
type CallerIdentifier interface {
	CallerID(ctx context.Context) (int32, error)
}

// ContextCaller reads the caller placed in the context by the transport.
type ContextCaller struct{}

// CallerID implements CallerIdentifier.
func (ContextCaller) CallerID(ctx context.Context) (int32, error) {
	id, ok := CallerIDFromContext(ctx)
	if !ok {
		return 0, fmt.Errorf("%w: no caller in request context", ErrNoCaller)
	}
	return id, nil
}
