package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// LocalValidator verifies and mints the service's own tokens, signed
// with the shared HMAC secret. It is safe for concurrent use.
type LocalValidator struct {
	secret     Secret
	defaultTTL time.Duration
	tracer     trace.Tracer
}

// NewLocalValidator creates a validator for locally minted tokens.
// defaultTTL is the lifetime [Gateway.Issue] falls back to when its
// caller passes a non-positive one; [LocalValidator.Issue] itself
// applies no default.
func NewLocalValidator(secret Secret, defaultTTL time.Duration) *LocalValidator {
	return &LocalValidator{
		secret:     secret,
		defaultTTL: defaultTTL,
		tracer:     otel.Tracer(tracerName),
	}
}

// Validate verifies the signature and expiry of a locally minted token
// and returns its claims. The subject claim carries the user's ID and
// must be present.
//
// jwt.WithValidMethods restricts accepted algorithms to HS256 only,
// preventing algorithm confusion attacks where an attacker presents an
// RSA-signed token and tricks the validator into using public key
// material as an HMAC secret.
func (v *LocalValidator) Validate(ctx context.Context, tokenStr string) (Claims, error) {
	_, span := startSpan(ctx, v.tracer, "auth.ValidateLocalToken")
	defer span.End()

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte(v.secret.Value()), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		classifiedErr := classifyTokenError(err)
		finishSpan(span, classifiedErr)
		return nil, classifiedErr
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		err := hgerr.New(hgerr.CodeAuthenticationInvalid, "auth: invalid local token claims")
		finishSpan(span, err)
		return nil, err
	}

	claims := claimsFromMapClaims(mc)
	if claims.Subject() == "" {
		err := hgerr.New(hgerr.CodeAuthenticationInvalid, "auth: local token missing subject").
			WithDetail("claim", "sub")
		finishSpan(span, err)
		return nil, err
	}

	return claims, nil
}

// Issue mints a token for the given subject, signed with the shared
// secret. The token carries only the subject and an expiry of exactly
// now+ttl; a zero or negative ttl therefore produces a token that is
// already expired.
func (v *LocalValidator) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", hgerr.New(hgerr.CodeValidationRequired, "auth: token subject must not be empty")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
	})

	signed, err := token.SignedString([]byte(v.secret.Value()))
	if err != nil {
		return "", hgerr.Wrap(err, hgerr.CodeInternal, "auth: failed to sign token")
	}
	return signed, nil
}
