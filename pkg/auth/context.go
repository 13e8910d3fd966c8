package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/homeglass/homeglass-core/pkg/store"
)

// contextKey is an unexported type used for context keys in this
// package. Using a distinct type prevents collisions with keys from
// other packages.
type contextKey int

// userKey stores the authenticated *store.User in the context.
const userKey contextKey = iota

// ContextWithUser returns a new context with the authenticated user
// attached. This is called by the HTTP middleware and gRPC
// interceptors after a successful [Gateway.Authenticate].
func ContextWithUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext retrieves the authenticated user from the context.
// Returns the user and true if present, or nil and false if no user
// has been set.
func UserFromContext(ctx context.Context) (*store.User, bool) {
	user, ok := ctx.Value(userKey).(*store.User)
	return user, ok
}

// MustUserFromContext retrieves the authenticated user from the
// context, panicking if none is present. Use only in code paths that
// run strictly behind the authentication middleware.
func MustUserFromContext(ctx context.Context) *store.User {
	user, ok := UserFromContext(ctx)
	if !ok {
		panic("auth: no user in context; ensure authentication middleware is configured")
	}
	return user
}

// TraceIDFromContext extracts the OpenTelemetry trace ID from the
// context. Returns the trace ID as a hex string and true if a valid
// trace is active. This lets log lines about authentication failures
// be correlated with distributed traces.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}
