package auth

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// metadataAuthorization is the gRPC metadata key carrying the bearer
// token. gRPC metadata keys are lowercase.
const metadataAuthorization = "authorization"

// UnaryServerInterceptor returns a gRPC unary interceptor that
// authenticates every call through the gateway and stores the
// resulting user in the handler context.
//
// All failures are collapsed to codes.Unauthenticated; the specific
// cause is logged, never returned to the caller.
func UnaryServerInterceptor(gateway *Gateway) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := authenticateGRPC(ctx, gateway, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream interceptor performing
// the same authentication as [UnaryServerInterceptor]. The stream is
// wrapped so handlers see the enriched context.
func StreamServerInterceptor(gateway *Gateway) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := authenticateGRPC(ss.Context(), gateway, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// authenticateGRPC extracts the bearer token from incoming metadata,
// authenticates it, and returns a context carrying the user.
func authenticateGRPC(ctx context.Context, gateway *Gateway, method string) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, "missing metadata")
	}

	values := md.Get(metadataAuthorization)
	if len(values) == 0 {
		return ctx, status.Error(codes.Unauthenticated, "missing authorization metadata")
	}
	token := ExtractBearerToken(values[0])
	if token == "" {
		return ctx, status.Error(codes.Unauthenticated, "invalid authorization format")
	}

	user, err := gateway.Authenticate(ctx, token)
	if err != nil {
		slog.WarnContext(ctx, "auth: gRPC call rejected",
			"error", err,
			"code", string(hgerr.GetCode(err)),
			"method", method,
		)
		return ctx, status.Error(codes.Unauthenticated, "credentials could not be validated")
	}

	return ContextWithUser(ctx, user), nil
}

// wrappedServerStream overrides Context() to return the context
// enriched by the interceptor. ServerStream.Context() would otherwise
// return the original stream context without the user.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context carrying the authenticated user.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
