package storage

import (
	"context"
	"fmt"
	"os"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSSink implements Sink on a Google Cloud Storage bucket.
type GCSSink struct {
	client *gcs.Client
	bucket string
}

// NewGCSSink creates a GCS client with credentials from environment
// (GOOGLE_CREDENTIALS or GOOGLE_APPLICATION_CREDENTIALS, else ADC).
func NewGCSSink(ctx context.Context, bucket string) (*GCSSink, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: GCS_OUTPUT_BUCKET is required", ErrInvalidConfiguration)
	}

	opts := googleCredentialOptions()
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
		}
		return nil, fmt.Errorf("storage: create GCS client: %w", err)
	}
	return &GCSSink{client: client, bucket: bucket}, nil
}

// Put implements Sink.
func (s *GCSSink) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return "", &UploadError{Key: key, Err: err}
	}
	if err := w.Close(); err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key), nil
}

// Close closes the underlying client.
func (s *GCSSink) Close() error {
	return s.client.Close()
}

func googleCredentialOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}
