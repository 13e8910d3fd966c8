package minio

import (
	"errors"
	"time"
)

// maxStatementTruncateLen is the maximum length for operation descriptions
// recorded in trace spans. Object keys can embed user-supplied filenames,
// so longer descriptions are truncated before they reach telemetry.
const maxStatementTruncateLen = 100

// Default settings for the standard Homeglass compose deployment, where
// MinIO runs as a sibling container of the API service.
const (
	// DefaultEndpoint is the MinIO address in the compose deployment.
	DefaultEndpoint = "localhost:9000"

	// DefaultBucket is the bucket holding display images.
	DefaultBucket = "homeglass-images"

	// DefaultRegion is the S3 region reported to the MinIO server.
	DefaultRegion = "us-east-1"

	// DefaultURLExpiry is how long presigned image URLs stay valid. Display
	// devices refresh their image list more often than this.
	DefaultURLExpiry = time.Hour

	// DefaultHealthTimeout is the maximum time for a health-check probe
	// when the caller's context has no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Secret is a string type that keeps the MinIO secret key out of logs.
// String, GoString, and MarshalText return a redacted placeholder; use
// [Secret.Value] to retrieve the actual value.
type Secret string

// redacted is the placeholder returned by Secret's string methods.
const redacted = "[REDACTED]"

// String returns "[REDACTED]" to keep the secret key out of logs.
func (s Secret) String() string { return redacted }

// GoString returns "[REDACTED]" for %#v formatting safety.
func (s Secret) GoString() string { return redacted }

// Value returns the actual secret string. Avoid logging or serializing it.
func (s Secret) Value() string { return string(s) }

// MarshalText implements encoding.TextMarshaler, returning "[REDACTED]"
// so the secret never appears in serialized configuration.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Config holds the MinIO image storage configuration. Environment variable
// names follow the original deployment's MINIO_* convention.
type Config struct {
	// Endpoint is the MinIO server host and port ("localhost:9000").
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint" env:"MINIO_ENDPOINT"`

	// AccessKey is the MinIO access key.
	AccessKey string `json:"access_key,omitempty" yaml:"access_key" env:"MINIO_ACCESS_KEY"`

	// SecretKey is the MinIO secret key, redacted in logs by the [Secret]
	// type.
	SecretKey Secret `json:"-" yaml:"-" env:"MINIO_SECRET_KEY"`

	// Bucket is the bucket holding display images. The client creates it
	// on startup if it does not exist.
	Bucket string `json:"bucket,omitempty" yaml:"bucket" env:"MINIO_BUCKET_NAME" envDefault:"homeglass-images"`

	// Region is the S3 region reported to the server.
	Region string `json:"region,omitempty" yaml:"region" env:"MINIO_REGION"`

	// UseSSL enables TLS for the connection. Off by default; the compose
	// deployment keeps MinIO on the private container network.
	UseSSL bool `json:"use_ssl,omitempty" yaml:"use_ssl" env:"MINIO_SECURE" envDefault:"false"`

	// URLExpiry is how long presigned image URLs stay valid.
	URLExpiry time.Duration `json:"url_expiry,omitempty" yaml:"url_expiry" env:"MINIO_URL_EXPIRY" envDefault:"1h"`
}

// DefaultConfig returns a Config with defaults for the standard Homeglass
// deployment. Override fields as needed before passing to [NewClient].
func DefaultConfig() *Config {
	return &Config{
		Endpoint:  DefaultEndpoint,
		Bucket:    DefaultBucket,
		Region:    DefaultRegion,
		URLExpiry: DefaultURLExpiry,
	}
}

// Validate checks the configuration and fills zero-valued fields with
// defaults. Returns the first validation error, or nil.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: config endpoint must not be empty")
	}
	if c.AccessKey == "" {
		return errors.New("minio: config access_key must not be empty")
	}
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	if c.URLExpiry < 0 {
		return errors.New("minio: config url_expiry must not be negative")
	}
	if c.URLExpiry == 0 {
		c.URLExpiry = DefaultURLExpiry
	}
	return nil
}

// truncateStatement shortens an operation description for span attributes.
func truncateStatement(s string) string {
	if len(s) <= maxStatementTruncateLen {
		return s
	}
	return s[:maxStatementTruncateLen] + "..."
}
