package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"callouts/internal/logger"
	"callouts/internal/ocr"
	"callouts/internal/storage"
)

type Config struct {
	// OCR Configuration
	OCREngine   string
	OCRTimeout  time.Duration
	OCRLanguage string

	// Google Cloud Configuration
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Storage Configuration
	StorageBackend   string
	R2Endpoint       string
	R2AccessKey      string
	R2SecretKey      string
	R2Bucket         string
	R2PublicURL      string
	R2SecretsProject string
	GCSOutputBucket  string
	LocalOutputDir   string

	// Cache and queue
	RedisURL    string
	OCRCacheTTL time.Duration

	// Pipeline Configuration
	DefaultChunkSize int
	ParallelWorkers  int
	MaxPages         int
	RetryAttempts    int
	RetryDelay       time.Duration
	UploadWorkers    int
	VocabularyFile   string

	// Server Configuration
	HTTPAddr          string
	WorkerConcurrency int

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OCREngine:             getEnv("OCR_ENGINE", ocr.EngineVision),
		OCRTimeout:            getEnvDuration("OCR_TIMEOUT", ocr.DefaultTimeout),
		OCRLanguage:           getEnv("OCR_LANGUAGE", "eng"),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		StorageBackend:        getEnv("STORAGE_BACKEND", storage.BackendR2),
		R2Endpoint:            getEnv("R2_ENDPOINT", ""),
		R2AccessKey:           getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey:           getEnv("R2_SECRET_KEY", ""),
		R2Bucket:              getEnv("R2_BUCKET", ""),
		R2PublicURL:           getEnv("R2_PUBLIC_URL", ""),
		R2SecretsProject:      getEnv("R2_SECRETS_PROJECT", ""),
		GCSOutputBucket:       getEnv("GCS_OUTPUT_BUCKET", ""),
		LocalOutputDir:        getEnv("LOCAL_OUTPUT_DIR", "./output"),
		RedisURL:              getEnv("REDIS_URL", ""),
		OCRCacheTTL:           getEnvDuration("OCR_CACHE_TTL", ocr.DefaultCacheTTL),
		DefaultChunkSize:      getEnvInt("DEFAULT_CHUNK_SIZE", 2),
		ParallelWorkers:       getEnvInt("PARALLEL_WORKERS", 30),
		MaxPages:              getEnvInt("MAX_PAGES", 50),
		RetryAttempts:         getEnvInt("RETRY_ATTEMPTS", 3),
		RetryDelay:            getEnvDuration("RETRY_DELAY", 2*time.Second),
		UploadWorkers:         getEnvInt("UPLOAD_WORKERS", storage.DefaultUploadWorkers),
		VocabularyFile:        getEnv("VOCABULARY_FILE", ""),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		WorkerConcurrency:     getEnvInt("WORKER_CONCURRENCY", 2),
		GoogleSheetURL:        getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:  getEnv("GOOGLE_SHEET_WORKSHEET", "Callouts"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.OCREngine {
	case ocr.EngineVision, "tesseract":
	case ocr.EngineDocumentAI:
		if c.GoogleCloudProject == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for OCR_ENGINE=%s", c.OCREngine)
		}
		if c.DocumentAIProcessorID == "" {
			return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for OCR_ENGINE=%s", c.OCREngine)
		}
	default:
		return fmt.Errorf("OCR_ENGINE must be vision, documentai or tesseract, got %q", c.OCREngine)
	}

	switch c.StorageBackend {
	case storage.BackendR2:
		if c.R2Bucket == "" {
			return fmt.Errorf("R2_BUCKET is required")
		}
	case storage.BackendGCS:
		if c.GCSOutputBucket == "" {
			return fmt.Errorf("GCS_OUTPUT_BUCKET is required")
		}
	case storage.BackendLocal:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be r2, gcs or local, got %q", c.StorageBackend)
	}

	if c.DefaultChunkSize < 1 || c.DefaultChunkSize > 15 {
		return fmt.Errorf("DEFAULT_CHUNK_SIZE must be between 1 and 15")
	}
	if c.ParallelWorkers < 1 || c.ParallelWorkers > 50 {
		return fmt.Errorf("PARALLEL_WORKERS must be between 1 and 50")
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("MAX_PAGES must be positive")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("RETRY_ATTEMPTS must be positive")
	}
	if c.OCRTimeout <= 0 {
		return fmt.Errorf("OCR_TIMEOUT must be positive")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// StorageConfig returns the artifact store configuration.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Backend:        c.StorageBackend,
		R2Endpoint:     c.R2Endpoint,
		R2AccessKey:    c.R2AccessKey,
		R2SecretKey:    c.R2SecretKey,
		R2Bucket:       c.R2Bucket,
		R2PublicURL:    c.R2PublicURL,
		SecretsProject: c.R2SecretsProject,
		GCSBucket:      c.GCSOutputBucket,
		LocalDir:       c.LocalOutputDir,
	}
}

// DocumentAIConfig returns the Document AI processor configuration.
func (c *Config) DocumentAIConfig() ocr.DocumentAIConfig {
	return ocr.DocumentAIConfig{
		ProjectID:   c.GoogleCloudProject,
		Location:    c.GoogleCloudLocation,
		ProcessorID: c.DocumentAIProcessorID,
		Timeout:     c.OCRTimeout,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
