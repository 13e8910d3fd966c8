// Package minio provides the image storage client used by the Homeglass
// backend, wrapping minio-go with OpenTelemetry tracing and structured
// error handling.
//
// Images live in a single bucket under uuid-named objects
// ("images/<uuid><ext>"). The bucket is created on startup if it does not
// exist. Display devices never talk to MinIO directly; the API hands them
// presigned GET URLs with a bounded lifetime.
//
// # Configuration
//
//	cfg := minio.DefaultConfig()
//	cfg.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
//	cfg.SecretKey = minio.Secret(os.Getenv("MINIO_SECRET_KEY"))
//	client, err := minio.NewClient(ctx, *cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For unit tests, inject a mock store with [NewFromStore].
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	hgerr "github.com/homeglass/homeglass-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/homeglass/homeglass-core/pkg/clients/minio"

// imagePrefix namespaces all image objects within the bucket.
const imagePrefix = "images/"

// defaultImageExt is used when an uploaded filename has no extension.
const defaultImageExt = ".jpg"

// defaultContentType is used when an upload specifies no MIME type.
const defaultContentType = "image/jpeg"

// ObjectStore is the subset of the minio-go API the image client uses. It
// is satisfied by [*minio.Client] and by mock implementations, enabling
// dependency injection via [NewFromStore] for tests without a real server.
//
// Method signatures follow the minio-go v7 API exactly so [*minio.Client]
// satisfies the interface without adaptation.
type ObjectStore interface {
	// PutObject uploads an object to a bucket.
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)

	// GetObject retrieves an object. The returned *minio.Object implements
	// io.ReadCloser and must be closed by the caller.
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)

	// StatObject retrieves object metadata without the body.
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)

	// RemoveObject deletes an object.
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error

	// PresignedGetObject generates a presigned download URL.
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)

	// BucketExists checks whether a bucket exists.
	BucketExists(ctx context.Context, bucketName string) (bool, error)

	// MakeBucket creates a bucket.
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// Compile-time assertion that *minio.Client satisfies ObjectStore.
var _ ObjectStore = (*minio.Client)(nil)

// Client is the Homeglass image storage client. It is safe for concurrent
// use; create one per MinIO endpoint and share it.
type Client struct {
	store  ObjectStore
	config *Config
	tracer trace.Tracer
}

// NewClient validates the configuration, connects to the MinIO server, and
// ensures the image bucket exists.
//
// Error codes returned:
//   - [hgerr.CodeValidation]: invalid configuration
//   - [hgerr.CodeUnavailableDependency]: server unreachable or bucket
//     bootstrap failed
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, hgerr.Wrap(err, hgerr.CodeValidation,
			"minio: invalid configuration")
	}

	store, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey.Value(), ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, hgerr.Wrap(err, hgerr.CodeValidation,
			"minio: failed to create client")
	}

	c := &Client{
		store:  store,
		config: &cfg,
		tracer: otel.Tracer(tracerName),
	}

	if err := c.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFromStore creates a Client around an existing [ObjectStore]. Intended
// for tests with mock stores; the config is stored but not validated, and
// may be nil. The bucket is not bootstrapped.
func NewFromStore(store ObjectStore, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{Bucket: DefaultBucket, URLExpiry: DefaultURLExpiry}
	}
	return &Client{
		store:  store,
		config: cfg,
		tracer: otel.Tracer(tracerName),
	}
}

// ensureBucket creates the image bucket when it does not already exist.
func (c *Client) ensureBucket(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "EnsureBucket", fmt.Sprintf("ENSURE %s", c.config.Bucket))

	exists, err := c.store.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		finishSpan(span, err)
		return hgerr.Wrap(err, hgerr.CodeUnavailableDependency,
			"minio: failed to check image bucket")
	}
	if !exists {
		err = c.store.MakeBucket(ctx, c.config.Bucket, minio.MakeBucketOptions{Region: c.config.Region})
	}
	finishSpan(span, err)
	if err != nil {
		return hgerr.Wrap(err, hgerr.CodeUnavailableDependency,
			"minio: failed to create image bucket")
	}
	return nil
}

// UploadImage stores image data under a fresh uuid-based object name and
// returns the storage path ("images/<uuid><ext>"). The extension is taken
// from fileName, falling back to ".jpg"; contentType falls back to
// "image/jpeg" when empty.
func (c *Client) UploadImage(ctx context.Context, data []byte, fileName, contentType string) (string, error) {
	ext := path.Ext(fileName)
	if ext == "" {
		ext = defaultImageExt
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	storagePath := imagePrefix + uuid.New().String() + ext

	ctx, span := c.startSpan(ctx, "UploadImage", fmt.Sprintf("PUT %s/%s", c.config.Bucket, storagePath))

	_, err := c.store.PutObject(ctx, c.config.Bucket, storagePath,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	finishSpan(span, err)
	if err != nil {
		return "", wrapError(err, "minio: image upload failed")
	}
	return storagePath, nil
}

// OpenImage returns a reader over a stored image. The caller must close it.
func (c *Client) OpenImage(ctx context.Context, storagePath string) (*minio.Object, error) {
	ctx, span := c.startSpan(ctx, "OpenImage", fmt.Sprintf("GET %s/%s", c.config.Bucket, storagePath))

	obj, err := c.store.GetObject(ctx, c.config.Bucket, storagePath, minio.GetObjectOptions{})
	finishSpan(span, err)
	if err != nil {
		return nil, wrapError(err, "minio: image open failed")
	}
	return obj, nil
}

// StatImage returns metadata for a stored image without downloading it.
// Returns [hgerr.CodeNotFound] when no object exists at storagePath.
func (c *Client) StatImage(ctx context.Context, storagePath string) (minio.ObjectInfo, error) {
	ctx, span := c.startSpan(ctx, "StatImage", fmt.Sprintf("STAT %s/%s", c.config.Bucket, storagePath))

	info, err := c.store.StatObject(ctx, c.config.Bucket, storagePath, minio.StatObjectOptions{})
	finishSpan(span, err)
	if err != nil {
		return info, wrapError(err, "minio: image stat failed")
	}
	return info, nil
}

// DeleteImage removes a stored image.
func (c *Client) DeleteImage(ctx context.Context, storagePath string) error {
	ctx, span := c.startSpan(ctx, "DeleteImage", fmt.Sprintf("DELETE %s/%s", c.config.Bucket, storagePath))

	err := c.store.RemoveObject(ctx, c.config.Bucket, storagePath, minio.RemoveObjectOptions{})
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "minio: image delete failed")
	}
	return nil
}

// ImageURL returns a presigned GET URL for a stored image. A non-positive
// expiry uses the configured default.
func (c *Client) ImageURL(ctx context.Context, storagePath string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = c.config.URLExpiry
	}

	ctx, span := c.startSpan(ctx, "ImageURL", fmt.Sprintf("PRESIGN GET %s/%s", c.config.Bucket, storagePath))

	u, err := c.store.PresignedGetObject(ctx, c.config.Bucket, storagePath, expiry, nil)
	finishSpan(span, err)
	if err != nil {
		return "", wrapError(err, "minio: presigned url generation failed")
	}
	return u.String(), nil
}

// Health verifies the MinIO server is reachable by checking the image
// bucket, applying [DefaultHealthTimeout] when the caller's context has no
// deadline. Returns a [*hgerr.Error] with code
// [hgerr.CodeUnavailableDependency] on failure. Intended for readiness
// probes.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "Health", fmt.Sprintf("HEAD %s", c.config.Bucket))

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}

	_, err := c.store.BucketExists(ctx, c.config.Bucket)
	finishSpan(span, err)
	if err != nil {
		return hgerr.Wrap(err, hgerr.CodeUnavailableDependency,
			"minio: health check failed")
	}
	return nil
}

// Bucket returns the configured image bucket name.
func (c *Client) Bucket() string {
	return c.config.Bucket
}

// Store exposes the underlying [ObjectStore] for operations the Client
// does not wrap.
func (c *Client) Store() ObjectStore {
	return c.store
}

// startSpan creates a span with storage semantic attributes.
func (c *Client) startSpan(ctx context.Context, operationName, statement string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "minio."+operationName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", "minio"),
		attribute.String("db.name", c.config.Bucket),
		attribute.String("db.statement", truncateStatement(statement)),
	)
	return ctx, span
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

// wrapError classifies a storage error so callers can make retry decisions
// with hgerr.IsTimeout / hgerr.IsRetryable. Missing objects map to
// [hgerr.CodeNotFound].
func wrapError(err error, message string) *hgerr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return hgerr.Wrap(err, hgerr.CodeTimeoutDatabase, message)
	}
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return hgerr.Wrap(err, hgerr.CodeNotFound, message)
	}
	return hgerr.Wrap(err, hgerr.CodeInternalDatabase, message)
}
