package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"callouts/internal/logger"
	"callouts/internal/pipeline"
	"callouts/internal/queue"
	"callouts/pkg/models"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Submit a job to the Redis queue",
	Long: `Validate a job and submit it to the queue consumed by "callouts worker".

Required environment variables:
  REDIS_URL - Redis connection URL, e.g. redis://localhost:6379/0`,
	Example: `  callouts enqueue --pdf-url https://files.example.com/set.pdf --project tower-a --webhook https://hooks.example.com/done`,
	Args: cobra.NoArgs,
	RunE: runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)

	enqueueCmd.Flags().String("pdf-url", "", "URL of the PDF to process")
	enqueueCmd.Flags().StringSlice("images", nil, "Page image URLs, in page order")
	enqueueCmd.Flags().String("project", "", "Project ID")
	enqueueCmd.Flags().String("file", "", "File ID (default: generated)")
	enqueueCmd.Flags().Int("chunk-size", 0, "Pages per chunk, 1-15")
	enqueueCmd.Flags().Int("workers", 0, "Parallel workers, 1-50")
	enqueueCmd.Flags().String("webhook", "", "URL to notify when the job finishes")
	enqueueCmd.Flags().String("queue", queue.DefaultQueue, "Queue name")
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("enqueue")

	pdfURL, _ := cmd.Flags().GetString("pdf-url")
	images, _ := cmd.Flags().GetStringSlice("images")
	projectID, _ := cmd.Flags().GetString("project")
	fileID, _ := cmd.Flags().GetString("file")
	chunkSize, _ := cmd.Flags().GetInt("chunk-size")
	workers, _ := cmd.Flags().GetInt("workers")
	webhook, _ := cmd.Flags().GetString("webhook")
	queueName, _ := cmd.Flags().GetString("queue")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	req, err := pipeline.NormalizeRequest(models.ProcessRequest{
		PDFURL:          pdfURL,
		Images:          images,
		ProjectID:       projectID,
		FileID:          fileID,
		ChunkSize:       chunkSize,
		ParallelWorkers: workers,
		Webhook:         webhook,
	})
	if err == nil {
		err = pipeline.RequireRemoteImages(req)
	}
	if err != nil {
		return handleProcessError(err, log)
	}

	producer, err := queue.NewProducer(cfg.RedisURL, queueName)
	if err != nil {
		return err
	}
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	id, err := producer.Enqueue(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("Enqueued task %s (project %s, file %s)\n", id, req.ProjectID, req.FileID)
	return nil
}
