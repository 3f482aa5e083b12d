package auth

import (
	"context"

	"github.com/stephnangue/regbridge/auth/introspect"
)

type contextKey int

const resultKey contextKey = iota

// WithResult stores the introspection result in the context.
func WithResult(ctx context.Context, result introspect.Result) context.Context {
	return context.WithValue(ctx, resultKey, result)
}

// ResultFromContext returns the introspection result attached by the
// filter, if any.
func ResultFromContext(ctx context.Context) (introspect.Result, bool) {
	result, ok := ctx.Value(resultKey).(introspect.Result)
	return result, ok
}
