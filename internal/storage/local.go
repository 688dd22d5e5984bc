package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalSink implements Sink on a local directory. URLs are file:// URLs.
type LocalSink struct {
	dir string
}

// NewLocalSink creates the directory if needed.
func NewLocalSink(dir string) (*LocalSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: LOCAL_OUTPUT_DIR is required", ErrInvalidConfiguration)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", abs, err)
	}
	return &LocalSink{dir: abs}, nil
}

// Put implements Sink.
func (s *LocalSink) Put(ctx context.Context, key string, body []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &UploadError{Key: key, Err: err}
	}

	clean := filepath.Clean("/" + key)
	if strings.Contains(clean, "..") {
		return "", &UploadError{Key: key, Err: fmt.Errorf("invalid key")}
	}
	path := filepath.Join(s.dir, filepath.FromSlash(clean))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", &UploadError{Key: key, Err: err}
	}
	return "file://" + filepath.ToSlash(path), nil
}
