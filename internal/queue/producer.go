package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"callouts/internal/logger"
	"callouts/pkg/models"
)

// Producer submits jobs.
type Producer struct {
	client *asynq.Client
	queue  string
	log    zerolog.Logger
}

// NewProducer connects to the Redis instance at redisURL.
func NewProducer(redisURL, queue string) (*Producer, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("queue: REDIS_URL is required")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}
	if queue == "" {
		queue = DefaultQueue
	}
	return &Producer{
		client: asynq.NewClient(opt),
		queue:  queue,
		log:    logger.WithComponent("queue-producer"),
	}, nil
}

// Enqueue submits req and returns the task ID.
func (p *Producer) Enqueue(ctx context.Context, req models.ProcessRequest) (string, error) {
	task, err := NewProcessTask(req)
	if err != nil {
		return "", err
	}

	info, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.queue),
		asynq.MaxRetry(DefaultMaxRetry),
		asynq.Timeout(DefaultJobTimeout),
	)
	if err != nil {
		return "", fmt.Errorf("queue: enqueue: %w", err)
	}

	p.log.Info().
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Str("project_id", req.ProjectID).
		Str("file_id", req.FileID).
		Msg("Job enqueued")
	return info.ID, nil
}

// Close releases the Redis connection.
func (p *Producer) Close() error {
	return p.client.Close()
}
