package notify

import (
	"errors"
	"time"
)

// Default settings for the standard Homeglass compose deployment, where
// Redis runs as a sibling container of the API service.
const (
	// DefaultHost is the Redis hostname in the compose deployment.
	DefaultHost = "localhost"

	// DefaultPort is the standard Redis port.
	DefaultPort = 6379

	// DefaultChannel carries device registry events. Display agents
	// subscribe to this channel to pick up configuration changes without
	// polling.
	DefaultChannel = "homeglass:device-events"

	// DefaultSource identifies this service in published events, so
	// subscribers can tell API-originated changes from agent-originated
	// ones.
	DefaultSource = "web-api"

	// DefaultDialTimeout is the maximum time to wait when establishing a
	// new connection to Redis.
	DefaultDialTimeout = 10 * time.Second

	// DefaultHealthTimeout is the maximum time for a health-check ping
	// when the caller's context has no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Secret is a string type that keeps the Redis password out of logs.
// String, GoString, and MarshalText return a redacted placeholder; use
// [Secret.Value] to retrieve the actual value.
type Secret string

// redacted is the placeholder returned by Secret's string methods.
const redacted = "[REDACTED]"

// String returns "[REDACTED]" to keep the password out of logs.
func (s Secret) String() string { return redacted }

// GoString returns "[REDACTED]" for %#v formatting safety.
func (s Secret) GoString() string { return redacted }

// Value returns the actual secret string. Avoid logging or serializing it.
func (s Secret) Value() string { return string(s) }

// MarshalText implements encoding.TextMarshaler, returning "[REDACTED]"
// so the password never appears in serialized configuration.
func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Config holds the device-event publisher configuration. Environment
// variable names follow the original deployment's REDIS_* convention.
type Config struct {
	// Host is the Redis server hostname or IP address.
	Host string `json:"host,omitempty" yaml:"host" env:"REDIS_HOST"`

	// Port is the Redis server port.
	Port int `json:"port,omitempty" yaml:"port" env:"REDIS_PORT"`

	// Password is the Redis password, redacted in logs by the [Secret]
	// type. Empty means no authentication.
	Password Secret `json:"-" yaml:"-" env:"REDIS_PASSWORD"`

	// DB is the Redis logical database index.
	DB int `json:"db,omitempty" yaml:"db" env:"REDIS_DB"`

	// Channel is the pub/sub channel carrying device events.
	Channel string `json:"channel,omitempty" yaml:"channel" env:"DEVICE_EVENT_CHANNEL" envDefault:"homeglass:device-events"`

	// Source identifies this service in published events.
	Source string `json:"source,omitempty" yaml:"source" env:"DEVICE_EVENT_SOURCE" envDefault:"web-api"`

	// DialTimeout is the maximum time to wait when establishing a new
	// connection.
	DialTimeout time.Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT"`
}

// DefaultConfig returns a Config with defaults for the standard Homeglass
// deployment. Override fields as needed before passing to [NewPublisher].
func DefaultConfig() *Config {
	return &Config{
		Host:        DefaultHost,
		Port:        DefaultPort,
		Channel:     DefaultChannel,
		Source:      DefaultSource,
		DialTimeout: DefaultDialTimeout,
	}
}

// Validate checks the configuration and fills zero-valued fields with
// defaults. Returns the first validation error, or nil.
func (c *Config) Validate() error {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("notify: config port must be between 1 and 65535")
	}
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}
	if c.Source == "" {
		c.Source = DefaultSource
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	return nil
}
