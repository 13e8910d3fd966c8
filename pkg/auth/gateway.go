package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
	"github.com/homeglass/homeglass-core/pkg/store"
)

// tracerName is the OpenTelemetry instrumentation scope for auth spans.
const tracerName = "github.com/homeglass/homeglass-core/pkg/auth"

// Gateway is the single authentication entry point: it turns a raw
// bearer token into a persisted active user or a typed failure.
// Construct one per process and share it by reference; it is safe for
// concurrent use.
type Gateway struct {
	issuer       string
	disableOAuth bool
	local        *LocalValidator
	remote       *RemoteValidator
	provisioner  *Provisioner
	keys         *KeySetCache
	users        UserStore
	tracer       trace.Tracer
}

// NewGateway builds the full validation pipeline from cfg. The remote
// path is only assembled when an OAuth issuer is configured; without
// one every token is treated as locally minted.
func NewGateway(cfg Config, users UserStore) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Gateway{
		issuer:       cfg.OAuthIssuer,
		disableOAuth: cfg.DisableOAuth,
		local:        NewLocalValidator(cfg.SecretKey, cfg.AccessTokenTTL),
		users:        users,
		tracer:       otel.Tracer(tracerName),
	}

	if cfg.OAuthIssuer != "" {
		client := cfg.httpClientOrDefault()
		g.keys = NewKeySetCache(cfg.OAuthIssuer, cfg.KeySetTTL, client)
		g.remote = NewRemoteValidator(cfg.OAuthIssuer, cfg.OAuthClientID, cfg.ClockSkew, g.keys)
		g.provisioner = NewProvisioner(users, cfg.OAuthIssuer, client)
	}

	return g, nil
}

// Authenticate validates a raw bearer token and resolves it to an
// active user.
//
// The token is first routed to a trust domain by [DetectTokenKind].
// Locally minted tokens resolve by a direct ID lookup on the subject.
// Provider tokens are rejected outright when remote authentication is
// disabled, otherwise validated and resolved through the provisioner.
// An inactive account fails regardless of how the token validated.
func (g *Gateway) Authenticate(ctx context.Context, token string) (*store.User, error) {
	ctx, span := startSpan(ctx, g.tracer, "auth.Authenticate")
	defer span.End()

	if token == "" {
		err := hgerr.New(hgerr.CodeAuthenticationInvalid, "auth: token must not be empty")
		finishSpan(span, err)
		return nil, err
	}
	if len(token) > maxTokenSize {
		err := hgerr.New(hgerr.CodeAuthenticationInvalid, "auth: token exceeds maximum size")
		finishSpan(span, err)
		return nil, err
	}

	kind := DetectTokenKind(token, g.issuer)
	span.SetAttributes(attribute.String("auth.token_kind", string(kind)))

	var user *store.User
	var err error

	switch kind {
	case KindLocal:
		user, err = g.authenticateLocal(ctx, token)
	case KindOAuth:
		user, err = g.authenticateOAuth(ctx, token)
	}
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}

	if !user.IsActive {
		err := hgerr.New(hgerr.CodeAuthorizationInactive, "auth: user account is inactive").
			WithDetail("user_id", user.ID.String())
		finishSpan(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("auth.user_id", user.ID.String()))
	return user, nil
}

// authenticateLocal validates a locally minted token and fetches the
// user its subject names.
func (g *Gateway) authenticateLocal(ctx context.Context, token string) (*store.User, error) {
	claims, err := g.local.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(claims.Subject())
	if err != nil {
		return nil, hgerr.New(hgerr.CodeAuthenticationInvalid, "auth: local token subject is not a user id").
			WithDetail("claim", "sub")
	}

	return g.users.GetByID(ctx, id)
}

// authenticateOAuth validates a provider token and resolves it through
// the provisioner.
func (g *Gateway) authenticateOAuth(ctx context.Context, token string) (*store.User, error) {
	if g.disableOAuth || g.remote == nil {
		return nil, hgerr.New(hgerr.CodeAuthenticationDisabled, "auth: provider authentication is disabled")
	}

	claims, err := g.remote.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	return g.provisioner.Resolve(ctx, claims, token)
}

// Issue mints a local token for the given user. The subject is the
// user's ID; a non-positive ttl uses the configured default lifetime.
func (g *Gateway) Issue(userID uuid.UUID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = g.local.defaultTTL
	}
	return g.local.Issue(userID.String(), ttl)
}

// Keys returns the signing-key cache, or nil when no OAuth issuer is
// configured. Exposed for administrative invalidation via
// [KeySetCache.ClearCache].
func (g *Gateway) Keys() *KeySetCache { return g.keys }

// startSpan creates a new OpenTelemetry span with the given name.
func startSpan(ctx context.Context, tracer trace.Tracer, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// finishSpan records an error on the span if err is non-nil and sets
// the span status to Error.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// classifyTokenError converts a JWT library error to a *hgerr.Error
// with the appropriate code. Errors already carrying a code pass
// through unchanged.
func classifyTokenError(err error) *hgerr.Error {
	if err == nil {
		return nil
	}

	var hgError *hgerr.Error
	if errors.As(err, &hgError) {
		return hgError
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return hgerr.Wrap(err, hgerr.CodeAuthenticationExpired, "auth: token has expired")
	}
	if errors.Is(err, jwt.ErrTokenMalformed) {
		return hgerr.Wrap(err, hgerr.CodeAuthenticationInvalid, "auth: token is malformed")
	}
	if errors.Is(err, jwt.ErrSignatureInvalid) {
		return hgerr.Wrap(err, hgerr.CodeAuthenticationInvalid, "auth: token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return hgerr.Wrap(err, hgerr.CodeAuthenticationInvalid, "auth: token is unverifiable")
	}
	if errors.Is(err, jwt.ErrTokenNotValidYet) {
		return hgerr.Wrap(err, hgerr.CodeAuthenticationInvalid, "auth: token is not yet valid")
	}
	if errors.Is(err, jwt.ErrTokenUsedBeforeIssued) {
		return hgerr.Wrap(err, hgerr.CodeAuthenticationInvalid, "auth: token issued in the future")
	}
	if errors.Is(err, jwt.ErrTokenInvalidAudience) {
		return hgerr.Wrap(err, hgerr.CodeAuthenticationInvalid, "auth: token audience is invalid")
	}
	if errors.Is(err, jwt.ErrTokenInvalidIssuer) {
		return hgerr.Wrap(err, hgerr.CodeAuthenticationInvalid, "auth: token issuer is invalid")
	}
	if errors.Is(err, jwt.ErrTokenInvalidClaims) {
		return hgerr.Wrap(err, hgerr.CodeAuthenticationInvalid, "auth: token claims are invalid")
	}

	return hgerr.Wrap(err, hgerr.CodeAuthenticationInvalid, "auth: token validation failed")
}
