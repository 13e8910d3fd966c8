package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind names the trust domain a bearer token belongs to.
type TokenKind string

const (
	// KindLocal marks tokens minted by this service and signed with
	// the shared HMAC secret.
	KindLocal TokenKind = "local"

	// KindOAuth marks tokens issued by the external OIDC provider and
	// signed with the provider's published keys.
	KindOAuth TokenKind = "oauth"
)

// Claims is the decoded payload of a validated token.
type Claims map[string]any

// Subject returns the "sub" claim, or "" if absent.
func (c Claims) Subject() string {
	sub, _ := c["sub"].(string)
	return sub
}

// Issuer returns the "iss" claim, or "" if absent.
func (c Claims) Issuer() string {
	iss, _ := c["iss"].(string)
	return iss
}

// Email returns the "email" claim, or "" if absent.
func (c Claims) Email() string {
	email, _ := c["email"].(string)
	return email
}

// Name returns the "name" claim, or "" if absent.
func (c Claims) Name() string {
	name, _ := c["name"].(string)
	return name
}

// claimsFromMapClaims converts jwt.MapClaims to Claims so callers do
// not carry the jwt type.
func claimsFromMapClaims(mc jwt.MapClaims) Claims {
	result := make(Claims, len(mc))
	for k, v := range mc {
		result[k] = v
	}
	return result
}

// normalizeIssuer strips a single trailing slash so issuer comparison
// is insensitive to it.
func normalizeIssuer(issuer string) string {
	return strings.TrimSuffix(issuer, "/")
}
