package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// HeaderAuthorization is the header carrying the bearer token.
const HeaderAuthorization = "Authorization"

// bearerPrefix is the expected authorization scheme prefix.
const bearerPrefix = "Bearer "

// ExtractBearerToken returns the token from an Authorization header
// value, or "" when the value is empty or not a bearer credential.
// The scheme comparison is case-insensitive.
func ExtractBearerToken(authHeader string) string {
	if len(authHeader) <= len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return authHeader[len(bearerPrefix):]
}

// HTTPMiddleware returns middleware that authenticates every request
// through the gateway and stores the resulting user in the request
// context for handlers behind it.
//
// Every authentication failure is answered with a generic 401; the
// specific cause (bad signature, unknown user, inactive account) is
// logged with the error code and trace ID but never sent to the
// client.
func HTTPMiddleware(gateway *Gateway) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
			if token == "" {
				http.Error(w, "missing or invalid authorization header", http.StatusUnauthorized)
				return
			}

			ctx := r.Context()
			user, err := gateway.Authenticate(ctx, token)
			if err != nil {
				logAuthFailure(ctx, r, err)
				http.Error(w, "credentials could not be validated", http.StatusUnauthorized)
				return
			}

			ctx = ContextWithUser(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSuperuser returns middleware that rejects requests from
// non-superuser accounts with 403. It must run behind
// [HTTPMiddleware].
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.IsSuperuser {
			http.Error(w, "insufficient privileges", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logAuthFailure records a rejected request with enough context for
// operator diagnosis. The client only ever sees the generic 401.
func logAuthFailure(ctx context.Context, r *http.Request, err error) {
	attrs := []any{
		"error", err,
		"code", string(hgerr.GetCode(err)),
		"method", r.Method,
		"path", r.URL.Path,
	}
	if traceID, ok := TraceIDFromContext(ctx); ok {
		attrs = append(attrs, "trace_id", traceID)
	}
	slog.WarnContext(ctx, "auth: request rejected", attrs...)
}
