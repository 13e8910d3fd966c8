package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// keySetPath is the provider's key-publishing route, appended to the
// issuer URL. The provider serves its keys here rather than behind the
// generic .well-known discovery document.
const keySetPath = "/oauth/v2/keys"

// KeySet is one fetched snapshot of the provider's signing keys,
// keyed by key ID. A KeySet is immutable after construction.
type KeySet struct {
	keys      map[string]any // kid -> *rsa.PublicKey or *ecdsa.PublicKey
	fetchedAt time.Time
}

// Key returns the public key with the given ID.
func (ks *KeySet) Key(kid string) (any, bool) {
	key, ok := ks.keys[kid]
	return key, ok
}

// Len returns the number of usable keys in the set.
func (ks *KeySet) Len() int { return len(ks.keys) }

// FetchedAt returns the time the set was retrieved from the provider.
func (ks *KeySet) FetchedAt() time.Time { return ks.fetchedAt }

// KeySetCache fetches the external provider's signing keys and serves
// them from memory for the freshness window. Construct one per
// process and share it by reference; it is safe for concurrent use.
//
// The cached snapshot is swapped atomically as a whole, so a reader
// never observes keys from one fetch paired with the timestamp of
// another. Concurrent refreshes may race and both hit the network;
// the last store wins, which is harmless because every successful
// fetch is equally fresh.
//
// A fetch failure is returned to the caller even when an expired
// snapshot is still held. Expired keys are never served.
type KeySetCache struct {
	jwksURL string
	ttl     time.Duration
	client  HTTPClient
	tracer  trace.Tracer

	entry atomic.Pointer[KeySet]
}

// NewKeySetCache creates a cache for the given issuer. ttl is the
// freshness window; client performs the HTTP fetch, falling back to a
// default client with a 10-second timeout when nil.
func NewKeySetCache(issuerURL string, ttl time.Duration, client HTTPClient) *KeySetCache {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &KeySetCache{
		jwksURL: normalizeIssuer(issuerURL) + keySetPath,
		ttl:     ttl,
		client:  client,
		tracer:  otel.Tracer(tracerName),
	}
}

// Keys returns the current key set, fetching from the provider when no
// snapshot is held or the held one has aged past the freshness window.
// Returns a *[hgerr.Error] with code
// [hgerr.CodeAuthenticationKeyDiscovery] when the fetch fails.
func (c *KeySetCache) Keys(ctx context.Context) (*KeySet, error) {
	if ks := c.entry.Load(); ks != nil && time.Since(ks.fetchedAt) < c.ttl {
		return ks, nil
	}

	ctx, span := startSpan(ctx, c.tracer, "auth.FetchKeySet")
	defer span.End()
	span.SetAttributes(attribute.String("auth.jwks_url", c.jwksURL))

	keys, err := c.fetch(ctx)
	if err != nil {
		wrappedErr := hgerr.Wrap(err, hgerr.CodeAuthenticationKeyDiscovery, "auth: failed to fetch provider signing keys")
		finishSpan(span, wrappedErr)
		return nil, wrappedErr
	}

	ks := &KeySet{keys: keys, fetchedAt: time.Now()}
	c.entry.Store(ks)
	span.SetAttributes(attribute.Int("auth.keyset_size", len(keys)))
	return ks, nil
}

// ClearCache drops the held snapshot so the next [KeySetCache.Keys]
// call fetches fresh keys. Intended for administrative key-rotation
// response and test isolation.
func (c *KeySetCache) ClearCache() {
	c.entry.Store(nil)
}

// jwksResponse is the JSON structure of the key-publishing endpoint.
type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey is a single published key. Only the fields needed for RSA and
// EC key reconstruction are included.
type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	// RSA fields
	N string `json:"n"`
	E string `json:"e"`
	// EC fields
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// fetch performs the HTTP GET against the key-publishing URL and
// reconstructs the public keys. Malformed key material fails the whole
// import; entries without a kid or with an unsupported key type are
// skipped. The body is limited to 1 MB.
func (c *KeySetCache) fetch(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to create key set request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: key set request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: key set endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("auth: failed to read key set response: %w", err)
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, fmt.Errorf("auth: failed to parse key set JSON: %w", err)
	}

	keys := make(map[string]any, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kid == "" {
			continue
		}
		switch k.Kty {
		case "RSA":
			pubKey, err := parseRSAPublicKey(k.N, k.E)
			if err != nil {
				return nil, fmt.Errorf("auth: malformed RSA key %q in key set: %w", k.Kid, err)
			}
			keys[k.Kid] = pubKey
		case "EC":
			pubKey, err := parseECPublicKey(k.Crv, k.X, k.Y)
			if err != nil {
				return nil, fmt.Errorf("auth: malformed EC key %q in key set: %w", k.Kid, err)
			}
			keys[k.Kid] = pubKey
		}
	}
	return keys, nil
}

// parseRSAPublicKey constructs an *rsa.PublicKey from base64url-encoded
// modulus (n) and exponent (e) values.
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{
		N: n,
		E: int(e.Int64()),
	}, nil
}

// parseECPublicKey constructs an *ecdsa.PublicKey from a curve name
// and base64url-encoded x and y coordinates.
func parseECPublicKey(crv, xBase64, yBase64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("auth: unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
