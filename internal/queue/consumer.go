package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"callouts/internal/logger"
	"callouts/internal/pipeline"
	"callouts/pkg/models"
)

// Processor runs one job.
type Processor interface {
	Process(ctx context.Context, req models.ProcessRequest) (models.ProcessResponse, error)
}

// Handler executes process tasks. Invalid requests are not retried.
type Handler struct {
	processor Processor
	log       zerolog.Logger
}

// NewHandler creates a task handler around processor.
func NewHandler(processor Processor) *Handler {
	return &Handler{processor: processor, log: logger.WithComponent("queue-worker")}
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	req, err := ParseProcessTask(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	start := time.Now()
	resp, err := h.processor.Process(ctx, req)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			h.log.Warn().Err(err).Msg("Rejected invalid job")
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		h.log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Job failed")
		return err
	}

	h.log.Info().
		Str("project_id", resp.ProjectID).
		Str("file_id", resp.FileID).
		Int("processed", resp.ProcessedPages).
		Ints("failed", resp.FailedPages).
		Dur("duration", time.Since(start)).
		Msg("Job finished")
	return nil
}

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	RedisURL    string
	Queue       string
	Concurrency int
}

// Consumer pulls process tasks from Redis and runs them.
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    zerolog.Logger
}

// NewConsumer creates a consumer; call Run to start it.
func NewConsumer(cfg ConsumerConfig, processor Processor) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("queue: REDIS_URL is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("queue: processor is required")
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("queue: parse redis url: %w", err)
	}
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	log := logger.WithComponent("queue-consumer")
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			cfg.Queue: 10,
			"default": 1,
		},
		RetryDelayFunc: RetryDelay,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("type", task.Type()).Msg("Task processing error")
		}),
		Logger: asynqLogger{log: log},
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeProcess, NewHandler(processor))

	return &Consumer{server: server, mux: mux, log: log}, nil
}

// Run blocks until the process receives a termination signal.
func (c *Consumer) Run() error {
	c.log.Info().Msg("Starting queue consumer")
	return c.server.Run(c.mux)
}

// Shutdown stops the consumer, waiting for active jobs.
func (c *Consumer) Shutdown() {
	c.server.Shutdown()
}

// RetryDelay backs off exponentially from 5s, capped at one minute.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(min(n, 4)))) * time.Second
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}

// asynqLogger routes asynq's internal logs through zerolog.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
