package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// DetectTokenKind decides which trust domain should validate a raw
// bearer token. It never fails: any structural defect degrades to
// [KindLocal], so the HMAC validator rejects the token with a precise
// error instead of classification itself erroring out.
//
// The decision reads the unverified payload: a token whose "iss" claim
// matches issuer (trailing slash insensitive) is [KindOAuth],
// everything else is [KindLocal]. An empty issuer forces KindLocal for
// every token. No signature is checked here, so the result only routes
// the token to a validator and must never be trusted for
// authorization on its own.
func DetectTokenKind(token, issuer string) TokenKind {
	if issuer == "" {
		return KindLocal
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return KindLocal
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return KindLocal
	}

	var claims struct {
		Iss string `json:"iss"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return KindLocal
	}

	if normalizeIssuer(claims.Iss) == normalizeIssuer(issuer) {
		return KindOAuth
	}
	return KindLocal
}

// decodeSegment base64url-decodes a token segment, tolerating both
// padded and unpadded encodings.
func decodeSegment(segment string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(segment, "="))
}
