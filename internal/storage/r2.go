package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// immutableCacheControl is set on page images, which never change once written.
const immutableCacheControl = "public, max-age=31536000"

// R2Credentials are the S3 API credentials of an R2 account.
type R2Credentials struct {
	Endpoint  string
	AccessKey string
	SecretKey string
}

func (c R2Credentials) complete() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != ""
}

// merge fills empty fields of c from other.
func (c R2Credentials) merge(other R2Credentials) R2Credentials {
	if c.Endpoint == "" {
		c.Endpoint = other.Endpoint
	}
	if c.AccessKey == "" {
		c.AccessKey = other.AccessKey
	}
	if c.SecretKey == "" {
		c.SecretKey = other.SecretKey
	}
	return c
}

// R2Sink implements Sink on Cloudflare R2.
type R2Sink struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewR2Sink creates an R2 client. publicURL is the base of returned URLs
// (for example https://pub-xxxx.r2.dev).
func NewR2Sink(creds R2Credentials, bucket, publicURL string) (*R2Sink, error) {
	if !creds.complete() {
		return nil, fmt.Errorf("%w: R2 endpoint, access key and secret key are required", ErrMissingCredentials)
	}
	if bucket == "" || publicURL == "" {
		return nil, fmt.Errorf("%w: R2_BUCKET and R2_PUBLIC_URL are required", ErrInvalidConfiguration)
	}

	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(creds.Endpoint),
		Region:       "auto",
		Credentials:  credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, ""),
		UsePathStyle: true,
	})

	return &R2Sink{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Put implements Sink.
func (s *R2Sink) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	}
	if strings.HasPrefix(contentType, "image/") {
		input.CacheControl = aws.String(immutableCacheControl)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	return s.publicURL + "/" + key, nil
}
