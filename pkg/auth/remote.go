package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// RemoteValidator verifies tokens issued by the external OIDC
// provider using the signing keys served by a [KeySetCache]. It is
// safe for concurrent use.
type RemoteValidator struct {
	issuer    string // normalized, no trailing slash
	clientID  string
	clockSkew time.Duration
	keys      *KeySetCache
	tracer    trace.Tracer
}

// NewRemoteValidator creates a validator for provider-issued tokens.
// When clientID is non-empty, tokens must list it in their "aud"
// claim; when empty, the audience claim is not checked.
func NewRemoteValidator(issuerURL, clientID string, clockSkew time.Duration, keys *KeySetCache) *RemoteValidator {
	return &RemoteValidator{
		issuer:    normalizeIssuer(issuerURL),
		clientID:  clientID,
		clockSkew: clockSkew,
		keys:      keys,
		tracer:    otel.Tracer(tracerName),
	}
}

// Validate verifies a provider-issued token and returns its claims.
// The signature is checked against the key selected by the token's
// "kid" header, the issuer must match (trailing slash insensitive),
// the subject must be non-empty, and the timestamp claims are checked
// with the configured clock-skew leeway. A signing-key fetch failure
// surfaces wrapped in the returned authentication error.
func (v *RemoteValidator) Validate(ctx context.Context, tokenStr string) (Claims, error) {
	ctx, span := startSpan(ctx, v.tracer, "auth.ValidateRemoteToken")
	defer span.End()

	ks, err := v.keys.Keys(ctx)
	if err != nil {
		wrappedErr := hgerr.Wrap(err, hgerr.CodeAuthenticationInvalid, "auth: provider token validation failed")
		finishSpan(span, wrappedErr)
		return nil, wrappedErr
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithLeeway(v.clockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if v.clientID != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.clientID))
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("auth: token header missing kid")
		}
		key, ok := ks.Key(kid)
		if !ok {
			return nil, fmt.Errorf("auth: key %q not found in provider key set", kid)
		}
		return key, nil
	}, parserOpts...)
	if err != nil {
		classifiedErr := classifyTokenError(err)
		finishSpan(span, classifiedErr)
		return nil, classifiedErr
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		err := hgerr.New(hgerr.CodeAuthenticationInvalid, "auth: invalid provider token claims")
		finishSpan(span, err)
		return nil, err
	}

	claims := claimsFromMapClaims(mc)

	// Issuer comparison is done here rather than via jwt.WithIssuer so
	// that a trailing slash on either side does not break the match.
	if normalizeIssuer(claims.Issuer()) != v.issuer {
		err := hgerr.New(hgerr.CodeAuthenticationInvalid, "auth: token issuer is invalid").
			WithDetail("claim", "iss")
		finishSpan(span, err)
		return nil, err
	}

	if claims.Subject() == "" {
		err := hgerr.New(hgerr.CodeAuthenticationInvalid, "auth: provider token missing subject").
			WithDetail("claim", "sub")
		finishSpan(span, err)
		return nil, err
	}

	return claims, nil
}
