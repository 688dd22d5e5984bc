package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"callouts/internal/api"
	"callouts/internal/logger"
	"callouts/internal/queue"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Start the HTTP API on HTTP_ADDR.

Endpoints:
  GET  /health   Liveness check
  POST /process  Run a job synchronously and return its response
  POST /jobs     Queue a job for "callouts worker" (only when REDIS_URL is set)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: HTTP_ADDR)")
	serveCmd.Flags().Duration("request-timeout", api.DefaultRequestTimeout, "Timeout for synchronous requests")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("request-timeout")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.HTTPAddr
	}

	ctx, stop := signalContext(context.Background(), log)
	defer stop()

	svc, err := buildServices(ctx, cfg, true, log)
	if err != nil {
		return err
	}
	defer svc.close(log)

	var enqueuer api.Enqueuer
	if cfg.RedisURL != "" {
		producer, err := queue.NewProducer(cfg.RedisURL, queue.DefaultQueue)
		if err != nil {
			return err
		}
		defer producer.Close()
		enqueuer = producer
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(svc.runner, enqueuer, timeout).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Bool("queue", enqueuer != nil).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}
