package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callouts/internal/extract"
	"callouts/internal/ocr"
	"callouts/internal/storage"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", storage.BackendLocal)
	t.Setenv("OCR_ENGINE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ocr.EngineVision, cfg.OCREngine)
	assert.Equal(t, 30*time.Second, cfg.OCRTimeout)
	assert.Equal(t, 2, cfg.DefaultChunkSize)
	assert.Equal(t, 30, cfg.ParallelWorkers)
	assert.Equal(t, 50, cfg.MaxPages)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, "info", cfg.GetLoggerConfig().Level)
	assert.Equal(t, storage.BackendLocal, cfg.StorageConfig().Backend)
}

func TestLoad_TypedOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", storage.BackendLocal)
	t.Setenv("PARALLEL_WORKERS", "8")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("MAX_PAGES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.ParallelWorkers)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, 50, cfg.MaxPages)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown engine", map[string]string{"OCR_ENGINE": "abbyy"}, "OCR_ENGINE"},
		{"document ai without processor", map[string]string{"OCR_ENGINE": "documentai", "GOOGLE_CLOUD_PROJECT": "p"}, "DOCUMENT_AI_PROCESSOR_ID"},
		{"r2 without bucket", map[string]string{"STORAGE_BACKEND": "r2", "R2_BUCKET": ""}, "R2_BUCKET"},
		{"gcs without bucket", map[string]string{"STORAGE_BACKEND": "gcs", "GCS_OUTPUT_BUCKET": ""}, "GCS_OUTPUT_BUCKET"},
		{"workers out of range", map[string]string{"STORAGE_BACKEND": "local", "PARALLEL_WORKERS": "51"}, "PARALLEL_WORKERS"},
		{"chunk out of range", map[string]string{"STORAGE_BACKEND": "local", "DEFAULT_CHUNK_SIZE": "20"}, "DEFAULT_CHUNK_SIZE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORAGE_BACKEND", storage.BackendLocal)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseVocabulary(t *testing.T) {
	v, err := ParseVocabulary([]byte(`
patterns:
  - '\b[A-Z]{3}-\d+\b'
words:
  material:
    - Terrazzo
block_confidence: 0.6
`))
	require.NoError(t, err)

	opts := v.Options()
	assert.Equal(t, []string{`\b[A-Z]{3}-\d+\b`}, opts.Patterns)
	assert.InDelta(t, 0.6, opts.BlockConfidence, 1e-9)
	assert.Equal(t, extract.BucketMaterial, opts.Vocabulary.Classify("terrazzo"))
	assert.Equal(t, extract.BucketArchitecturalElement, opts.Vocabulary.Classify("door"))

	ex, err := extract.New(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC-12"}, ex.Patterns().FindAll("see abc-12"))
}

func TestParseVocabulary_Errors(t *testing.T) {
	_, err := ParseVocabulary([]byte("words:\n  furniture: [chair]\n"))
	assert.ErrorContains(t, err, "furniture")

	_, err = ParseVocabulary([]byte("patterns: ['(']\n"))
	assert.Error(t, err)

	_, err = ParseVocabulary([]byte("patterns: [unclosed\n"))
	assert.Error(t, err)
}

func TestExtractorOptions_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("row_tolerance: 12\n"), 0o644))

	cfg := &Config{VocabularyFile: path}
	opts, err := cfg.ExtractorOptions()
	require.NoError(t, err)
	assert.InDelta(t, 12.0, opts.RowTolerance, 1e-9)

	cfg.VocabularyFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.ExtractorOptions()
	assert.Error(t, err)
}
