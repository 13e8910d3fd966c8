// Package notify publishes device registry events over Redis pub/sub.
//
// The publisher is publish-only. The API never subscribes; display agents
// listening on the channel pick up create, update, and delete events for
// their device records and refresh without polling.
//
// Events are small JSON documents:
//
//	{"device_id": "<uuid>", "action": "updated", "source": "web-api"}
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/homeglass/homeglass-core/pkg/notify"

// Action describes what happened to a device record.
type Action string

const (
	// ActionCreated is published when a device record is created.
	ActionCreated Action = "created"

	// ActionUpdated is published when a device record changes.
	ActionUpdated Action = "updated"

	// ActionDeleted is published when a device record is removed.
	ActionDeleted Action = "deleted"
)

// Valid reports whether the action is one of the recognized values.
func (a Action) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	default:
		return false
	}
}

// DeviceEvent is the JSON document published on the device-event channel.
type DeviceEvent struct {
	DeviceID string `json:"device_id"`
	Action   Action `json:"action"`
	Source   string `json:"source"`
}

// Pubber is the subset of the go-redis API the publisher uses. It is
// satisfied by [*redis.Client] and by mock implementations, enabling
// dependency injection via [NewFromClient] for tests without a real Redis
// instance.
type Pubber interface {
	// Publish posts a message to a channel.
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd

	// Ping pings the Redis server.
	Ping(ctx context.Context) *redis.StatusCmd

	// Close closes the client connection.
	Close() error
}

// Compile-time assertion that *redis.Client satisfies Pubber.
var _ Pubber = (*redis.Client)(nil)

// Publisher publishes device events with OpenTelemetry tracing and
// structured error handling. It is safe for concurrent use; create one per
// Redis instance and share it.
type Publisher struct {
	client Pubber
	config *Config
	tracer trace.Tracer
}

// NewPublisher validates the configuration, connects to Redis, and
// verifies connectivity with a ping. The caller must Close the publisher
// when done.
//
// Error codes returned:
//   - [hgerr.CodeValidation]: invalid configuration
//   - [hgerr.CodeUnavailableDependency]: cannot connect to Redis
func NewPublisher(ctx context.Context, cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, hgerr.Wrap(err, hgerr.CodeValidation,
			"notify: invalid configuration")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password.Value(),
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, hgerr.Wrap(err, hgerr.CodeUnavailableDependency,
			"notify: failed to connect to redis")
	}

	return &Publisher{
		client: rdb,
		config: &cfg,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// NewFromClient creates a Publisher around an existing [Pubber]. Intended
// for tests with mock clients; the config is stored but not validated, and
// may be nil.
func NewFromClient(client Pubber, cfg *Config) *Publisher {
	if cfg == nil {
		cfg = &Config{Channel: DefaultChannel, Source: DefaultSource}
	}
	return &Publisher{
		client: client,
		config: cfg,
		tracer: otel.Tracer(tracerName),
	}
}

// PublishDeviceEvent publishes a device event on the configured channel.
//
// Error codes returned:
//   - [hgerr.CodeValidation]: unrecognized action
//   - [hgerr.CodeTimeoutDependency]: the publish timed out
//   - [hgerr.CodeUnavailableDependency]: Redis rejected the publish
func (p *Publisher) PublishDeviceEvent(ctx context.Context, deviceID uuid.UUID, action Action) error {
	if !action.Valid() {
		return hgerr.New(hgerr.CodeValidation,
			"notify: unrecognized device event action").
			WithDetail("action", string(action))
	}

	payload, err := json.Marshal(DeviceEvent{
		DeviceID: deviceID.String(),
		Action:   action,
		Source:   p.config.Source,
	})
	if err != nil {
		return hgerr.Wrap(err, hgerr.CodeInternal,
			"notify: failed to encode device event")
	}

	ctx, span := p.tracer.Start(ctx, "notify.PublishDeviceEvent",
		trace.WithSpanKind(trace.SpanKindProducer),
	)
	span.SetAttributes(
		attribute.String("messaging.system", "redis"),
		attribute.String("messaging.destination.name", p.config.Channel),
		attribute.String("device.id", deviceID.String()),
		attribute.String("device.action", string(action)),
	)

	err = p.client.Publish(ctx, p.config.Channel, payload).Err()
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "notify: failed to publish device event")
	}

	slog.InfoContext(ctx, "notify: published device event",
		"device_id", deviceID,
		"action", string(action),
		"channel", p.config.Channel,
	)
	return nil
}

// Health pings Redis, applying [DefaultHealthTimeout] when the caller's
// context has no deadline. Returns a [*hgerr.Error] with code
// [hgerr.CodeUnavailableDependency] on failure. Intended for readiness
// probes.
func (p *Publisher) Health(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "notify.Health")

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}

	err := p.client.Ping(ctx).Err()
	finishSpan(span, err)
	if err != nil {
		return hgerr.Wrap(err, hgerr.CodeUnavailableDependency,
			"notify: health check failed")
	}
	return nil
}

// Channel returns the configured device-event channel name.
func (p *Publisher) Channel() string {
	return p.config.Channel
}

// Close releases the underlying connection. Safe to call multiple times.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// finishSpan records the error (if any) and ends the span.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// wrapError classifies a publish error so callers can make retry decisions
// with hgerr.IsTimeout / hgerr.IsRetryable.
func wrapError(err error, message string) *hgerr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return hgerr.Wrap(err, hgerr.CodeTimeoutDependency, message)
	}
	return hgerr.Wrap(err, hgerr.CodeUnavailableDependency, message)
}
