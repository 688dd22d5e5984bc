package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"callouts/internal/logger"
)

// DefaultUploadWorkers bounds concurrent uploads.
const DefaultUploadWorkers = 10

// UploadTask is one object to store.
type UploadTask struct {
	ID          string
	Key         string
	Body        []byte
	ContentType string
}

// BatchUploader fans uploads out over a bounded pool.
type BatchUploader struct {
	sink    Sink
	workers int
	log     zerolog.Logger
}

// NewBatchUploader creates an uploader. workers <= 0 uses DefaultUploadWorkers.
func NewBatchUploader(sink Sink, workers int) *BatchUploader {
	if workers <= 0 {
		workers = DefaultUploadWorkers
	}
	return &BatchUploader{
		sink:    sink,
		workers: workers,
		log:     logger.WithComponent("batch-upload"),
	}
}

// Upload stores every task and returns the URL of each stored task by ID.
// Failed tasks are logged and left out of the map; one failure never stops
// the others.
func (u *BatchUploader) Upload(ctx context.Context, tasks []UploadTask) map[string]string {
	urls := make(map[string]string, len(tasks))
	if len(tasks) == 0 {
		return urls
	}

	start := time.Now()
	var (
		mu     sync.Mutex
		failed int
		g      errgroup.Group
	)
	g.SetLimit(u.workers)

	for _, task := range tasks {
		g.Go(func() error {
			url, err := u.sink.Put(ctx, task.Key, task.Body, task.ContentType)
			if err != nil {
				var upErr *UploadError
				if !errors.As(err, &upErr) {
					err = &UploadError{Key: task.Key, Err: err}
				}
				u.log.Error().Err(err).Str("task", task.ID).Str("key", task.Key).Msg("Upload failed")
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			urls[task.ID] = url
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	u.log.Info().
		Int("tasks", len(tasks)).
		Int("uploaded", len(urls)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Batch upload completed")

	return urls
}
