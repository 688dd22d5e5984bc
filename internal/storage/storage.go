// Package storage persists job artifacts (page images, page JSON and the
// final document) and returns their public URLs.
//
// Backends:
//   - R2Sink: Cloudflare R2 through the S3 API (default)
//   - GCSSink: Google Cloud Storage
//   - LocalSink: a directory on disk, for development and tests
//
// Sinks are built once per process and shared by every upload worker.
package storage

import (
	"context"
	"errors"
	"fmt"
)

const (
	// BackendR2 selects Cloudflare R2.
	BackendR2 = "r2"

	// BackendGCS selects Google Cloud Storage.
	BackendGCS = "gcs"

	// BackendLocal selects the local filesystem.
	BackendLocal = "local"

	// ContentTypeJSON is used for page and final documents.
	ContentTypeJSON = "application/json"
)

var (
	// ErrMissingCredentials is returned when a backend has no credentials.
	ErrMissingCredentials = errors.New("missing storage credentials")

	// ErrInvalidConfiguration is returned for incomplete backend settings.
	ErrInvalidConfiguration = errors.New("invalid storage configuration")

	// ErrUploadFailed is returned when an object cannot be written.
	ErrUploadFailed = errors.New("upload failed")
)

// Sink stores one object and returns the URL it can be read from.
type Sink interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// UploadError wraps a failed object write.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("storage: upload %s failed: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Is matches ErrUploadFailed in addition to the wrapped error.
func (e *UploadError) Is(target error) bool {
	return target == ErrUploadFailed
}

// Config selects and configures a Sink.
type Config struct {
	Backend string

	R2Endpoint     string
	R2AccessKey    string
	R2SecretKey    string
	R2Bucket       string
	R2PublicURL    string
	SecretsProject string

	GCSBucket string

	LocalDir string
}

// NewSink builds the configured backend. R2 credentials missing from cfg are
// read from Secret Manager when SecretsProject is set.
func NewSink(ctx context.Context, cfg Config) (Sink, error) {
	switch cfg.Backend {
	case BackendR2, "":
		creds := R2Credentials{
			Endpoint:  cfg.R2Endpoint,
			AccessKey: cfg.R2AccessKey,
			SecretKey: cfg.R2SecretKey,
		}
		if !creds.complete() && cfg.SecretsProject != "" {
			loaded, err := LoadR2Credentials(ctx, cfg.SecretsProject)
			if err != nil {
				return nil, err
			}
			creds = creds.merge(loaded)
		}
		return NewR2Sink(creds, cfg.R2Bucket, cfg.R2PublicURL)
	case BackendGCS:
		return NewGCSSink(ctx, cfg.GCSBucket)
	case BackendLocal:
		return NewLocalSink(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfiguration, cfg.Backend)
	}
}
