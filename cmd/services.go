package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"callouts/internal/config"
	"callouts/internal/extract"
	"callouts/internal/notify"
	"callouts/internal/ocr"
	"callouts/internal/ocr/tesseract"
	"callouts/internal/pages"
	"callouts/internal/pipeline"
	"callouts/internal/storage"
)

// services holds the clients built once per process and shared by every job.
type services struct {
	cfg    *config.Config
	runner *pipeline.Runner
	client *http.Client

	closers []func() error
}

func (s *services) close(log zerolog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Failed to close client")
		}
	}
}

func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return nil, fmt.Errorf("invalid configuration (check your .env file): %w", err)
	}
	return cfg, nil
}

// buildServices wires OCR, extraction, storage and notification into a
// runner. withSink=false runs without uploading any artifact. The runner
// only accepts http(s) sources; see allowLocalPaths.
func buildServices(ctx context.Context, cfg *config.Config, withSink bool, log zerolog.Logger) (*services, error) {
	s := &services{cfg: cfg, client: &http.Client{Timeout: pages.DefaultFetchTimeout}}

	engine, err := newOCREngine(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if c, ok := engine.(interface{ Close() error }); ok {
		s.closers = append(s.closers, c.Close)
	}

	if cfg.RedisURL != "" {
		store, err := ocr.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("OCR cache unavailable, continuing without it")
		} else {
			s.closers = append(s.closers, store.Close)
			engine = ocr.NewCachedService(engine, store, cfg.OCRCacheTTL)
			log.Debug().Dur("ttl", cfg.OCRCacheTTL).Msg("OCR cache enabled")
		}
	}

	opts, err := cfg.ExtractorOptions()
	if err != nil {
		s.close(log)
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}
	extractor, err := extract.New(opts)
	if err != nil {
		s.close(log)
		return nil, fmt.Errorf("failed to build extractor: %w", err)
	}

	var sink storage.Sink
	if withSink {
		sink, err = storage.NewSink(ctx, cfg.StorageConfig())
		if err != nil {
			s.close(log)
			return nil, handleStorageError(err, log)
		}
		if c, ok := sink.(interface{ Close() error }); ok {
			s.closers = append(s.closers, c.Close)
		}
	}

	s.runner = &pipeline.Runner{
		OCR:           engine,
		Extractor:     extractor,
		Open:          pipeline.HTTPSourceOpener(s.client),
		Sink:          sink,
		UploadWorkers: cfg.UploadWorkers,
		Notifier:      notify.NewWebhook(nil),
		Retry:         pipeline.RetryPolicy{MaxAttempts: cfg.RetryAttempts, Delay: cfg.RetryDelay},
		MaxPages:      cfg.MaxPages,
	}

	log.Debug().
		Str("ocr_engine", engine.Name()).
		Str("storage", cfg.StorageBackend).
		Bool("uploads", withSink).
		Msg("Services ready")
	return s, nil
}

// allowLocalPaths lets the runner read image entries from disk. Only
// commands run by the operator on their own files may call it.
func (s *services) allowLocalPaths() {
	s.runner.Open = pipeline.LocalSourceOpener(s.client)
}

// newOCREngine builds the engine selected by OCR_ENGINE.
func newOCREngine(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ocr.Service, error) {
	switch cfg.OCREngine {
	case ocr.EngineVision, "":
		if err := requireGoogleCredentials(log); err != nil {
			return nil, err
		}
		svc, err := ocr.NewGoogleVisionService(ctx, cfg.OCRTimeout)
		if err != nil {
			return nil, handleOCRError(err, log)
		}
		return svc, nil
	case ocr.EngineDocumentAI:
		if err := requireGoogleCredentials(log); err != nil {
			return nil, err
		}
		svc, err := ocr.NewDocumentAIService(ctx, cfg.DocumentAIConfig())
		if err != nil {
			return nil, handleOCRError(err, log)
		}
		return svc, nil
	case tesseract.EngineName:
		return tesseract.New(strings.Split(cfg.OCRLanguage, "+")...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ocr.ErrUnknownEngine, cfg.OCREngine)
	}
}

func requireGoogleCredentials(log zerolog.Logger) error {
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GOOGLE_CREDENTIALS") != "" {
		return nil
	}
	log.Error().Msg("Google Cloud credentials not configured")
	return fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
		"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
		"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
		"2. Export GOOGLE_CREDENTIALS with inline JSON:\n" +
		"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n" +
		"3. Or set OCR_ENGINE=tesseract to run OCR locally")
}

// signalContext is canceled on SIGINT/SIGTERM.
func signalContext(parent context.Context, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR timed out. Try increasing --timeout or OCR_TIMEOUT")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR was canceled")
	case errors.Is(err, ocr.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials validation failed. Please verify:\n\n" +
			"1. Credentials file exists and is readable\n" +
			"2. JSON format is valid\n" +
			"3. Service account has proper permissions\n\n" +
			"Original error: %w", err)
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("page image is too large (maximum 20MB)")
	case errors.Is(err, ocr.ErrUnsupportedFormat):
		return fmt.Errorf("unsupported page format. Use JPEG or PNG images, or a PDF with a Google OCR engine: %w", err)
	case errors.Is(err, ocr.ErrEmptyImage):
		return fmt.Errorf("page image is empty")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your service account can call the selected OCR API")
	case strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "quota"):
		return fmt.Errorf("OCR API quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("OCR failed. This may be due to network issues, API quota limits, or service unavailability: %w", err)
	default:
		return fmt.Errorf("OCR failed: %w", err)
	}
}

// handleStorageError explains artifact store setup failures.
func handleStorageError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Failed to initialize storage")

	switch {
	case errors.Is(err, storage.ErrMissingCredentials):
		return fmt.Errorf("storage credentials missing. Set R2_ENDPOINT, R2_ACCESS_KEY and R2_SECRET_KEY, " +
			"or R2_SECRETS_PROJECT to read them from Secret Manager: %w", err)
	case errors.Is(err, storage.ErrInvalidConfiguration):
		return fmt.Errorf("storage is misconfigured. Check STORAGE_BACKEND and its bucket settings: %w", err)
	default:
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
}

// handleProcessError provides user-friendly messages for job failures.
func handleProcessError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Job failed")

	var verr *pipeline.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Errorf("invalid request: %s %s (got %v)", verr.Field, verr.Message, verr.Value)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("job was canceled")
	case errors.Is(err, pages.ErrFetchFailed):
		return fmt.Errorf("could not download the document. Check the URL is reachable: %w", err)
	case errors.Is(err, pages.ErrNoPages):
		return fmt.Errorf("the document has no pages")
	default:
		return fmt.Errorf("job failed: %w", err)
	}
}
