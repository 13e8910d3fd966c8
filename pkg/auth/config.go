// Package auth is the Homeglass authentication core. It accepts bearer
// tokens from two trust domains: tokens the service mints itself,
// signed with a shared HMAC secret (HS256), and tokens issued by an
// external OIDC provider, signed with the provider's published keys.
//
// A raw token flows through [DetectTokenKind] to pick the trust
// domain, then through [LocalValidator] or [RemoteValidator], and
// finally resolves to a persisted user: local tokens by a direct ID
// lookup, provider tokens through the [Provisioner], which creates an
// account on first sight. [Gateway.Authenticate] ties the pieces
// together and is the only entry point the rest of the system uses.
package auth

import (
	"net/http"
	"time"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// Secret is a string type that redacts its value in String(),
// GoString(), and MarshalText() to prevent accidental exposure in
// logs, JSON output, or fmt.Printf. The actual value is only
// accessible via [Secret.Value].
type Secret string

// secretRedacted is the placeholder shown instead of the actual
// secret value when the secret is printed or serialized.
const secretRedacted = "[REDACTED]"

// String returns the redacted placeholder.
func (s Secret) String() string { return secretRedacted }

// GoString returns the redacted placeholder, covering %#v formatting.
func (s Secret) GoString() string { return secretRedacted }

// Value returns the actual secret string. Call it only where the raw
// value is required, such as a signing function.
func (s Secret) Value() string { return string(s) }

// MarshalText implements [encoding.TextMarshaler], returning the
// redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// HTTPClient abstracts the HTTP client used for the signing-key fetch
// and the userinfo fallback. The standard [http.Client] satisfies it;
// tests substitute clients pointed at httptest servers.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// defaultHTTPTimeout bounds the signing-key fetch and the userinfo
// fallback request.
const defaultHTTPTimeout = 10 * time.Second

// maxTokenSize is the maximum accepted size for a token string (8 KB).
// Larger tokens are rejected before any parsing.
const maxTokenSize = 8192

// Config holds the settings for the authentication core. Zero values
// for the duration fields are filled with defaults by
// [Config.Validate].
type Config struct {
	// SecretKey signs and verifies locally minted tokens (HS256).
	// Must be at least 32 bytes.
	SecretKey Secret `json:"-" env:"SECRET_KEY" required:"true"`

	// OAuthIssuer is the base URL of the external OIDC provider
	// (e.g. "https://auth.example.com"). When empty, every token is
	// treated as locally minted.
	OAuthIssuer string `json:"oauth_issuer,omitempty" env:"OAUTH_ISSUER"`

	// OAuthClientID is the client identifier registered with the
	// provider. When set, provider tokens must carry it in their "aud"
	// claim. When empty, the audience claim is not checked; this
	// mirrors the provider's permissive default and should be set in
	// any multi-client deployment.
	OAuthClientID string `json:"oauth_client_id,omitempty" env:"OAUTH_CLIENT_ID"`

	// DisableOAuth turns off the external trust domain entirely.
	// Provider tokens are then rejected before any network activity.
	DisableOAuth bool `json:"disable_oauth" env:"DISABLE_OAUTH" envDefault:"false"`

	// AccessTokenTTL is the lifetime of locally minted tokens when the
	// caller does not pass one. Defaults to 8 days.
	AccessTokenTTL time.Duration `json:"access_token_ttl" env:"ACCESS_TOKEN_TTL" envDefault:"192h"`

	// KeySetTTL is the freshness window for the provider's cached
	// signing keys. Defaults to 1 hour.
	KeySetTTL time.Duration `json:"keyset_ttl" env:"OAUTH_KEYSET_TTL" envDefault:"1h"`

	// ClockSkew is the tolerance applied to provider token timestamps
	// (exp, nbf, iat). Defaults to 120 seconds. Locally minted tokens
	// get no leeway.
	ClockSkew time.Duration `json:"clock_skew" env:"OAUTH_CLOCK_SKEW" envDefault:"120s"`

	// HTTPClient performs the signing-key fetch and the userinfo
	// fallback. If nil, a default client with a 10-second timeout is
	// used.
	HTTPClient HTTPClient `json:"-"`
}

// DefaultConfig returns a Config with the standard durations set.
// SecretKey and the OAuth fields must still be provided.
func DefaultConfig() Config {
	return Config{
		AccessTokenTTL: 192 * time.Hour,
		KeySetTTL:      time.Hour,
		ClockSkew:      120 * time.Second,
	}
}

// Validate checks the configuration and fills zero-valued durations
// with defaults. Returns a *[hgerr.Error] with code
// [hgerr.CodeValidation] on the first invalid field.
func (c *Config) Validate() error {
	if len(c.SecretKey.Value()) < 32 {
		return hgerr.New(hgerr.CodeValidation, "auth: secret key must be at least 32 bytes")
	}
	if c.AccessTokenTTL < 0 || c.KeySetTTL < 0 || c.ClockSkew < 0 {
		return hgerr.New(hgerr.CodeValidation, "auth: durations must be non-negative")
	}

	if c.AccessTokenTTL == 0 {
		c.AccessTokenTTL = 192 * time.Hour
	}
	if c.KeySetTTL == 0 {
		c.KeySetTTL = time.Hour
	}
	if c.ClockSkew == 0 {
		c.ClockSkew = 120 * time.Second
	}
	return nil
}

// httpClientOrDefault returns the configured client or a default one
// with the standard timeout.
func (c *Config) httpClientOrDefault() HTTPClient {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}
