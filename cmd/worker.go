package cmd

import (
	"github.com/spf13/cobra"

	"callouts/internal/logger"
	"callouts/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process jobs from the Redis queue",
	Long: `Consume jobs submitted with "callouts enqueue" or POST /jobs and run them.

WORKER_CONCURRENCY jobs run at once; each job uses its own page worker
pool. The worker stops gracefully on SIGINT or SIGTERM, finishing active
jobs first.

Required environment variables:
  REDIS_URL - Redis connection URL`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().String("queue", queue.DefaultQueue, "Queue name")
	workerCmd.Flags().Int("concurrency", 0, "Concurrent jobs (default: WORKER_CONCURRENCY)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("worker")

	queueName, _ := cmd.Flags().GetString("queue")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if concurrency <= 0 {
		concurrency = cfg.WorkerConcurrency
	}

	svc, err := buildServices(cmd.Context(), cfg, true, log)
	if err != nil {
		return err
	}
	defer svc.close(log)

	consumer, err := queue.NewConsumer(queue.ConsumerConfig{
		RedisURL:    cfg.RedisURL,
		Queue:       queueName,
		Concurrency: concurrency,
	}, svc.runner)
	if err != nil {
		return err
	}

	log.Info().
		Str("queue", queueName).
		Int("concurrency", concurrency).
		Msg("Worker started")

	// Run returns after asynq handles SIGINT/SIGTERM.
	return consumer.Run()
}
