package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callouts/internal/aggregate"
	"callouts/internal/extract"
	"callouts/internal/notify"
	"callouts/internal/pages"
	"callouts/pkg/models"
)

type recordingNotifier struct {
	mu       sync.Mutex
	urls     []string
	payloads []notify.Payload
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, url string, payload notify.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.urls = append(n.urls, url)
	n.payloads = append(n.payloads, payload)
	return n.err
}

func openMem(src pages.Source) SourceOpener {
	return func(context.Context, models.ProcessRequest) (pages.Source, error) {
		return src, nil
	}
}

func newTestRunner(src pages.Source, engine *fakeOCR, sink *memSink, n notify.Notifier) *Runner {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Runner{
		OCR:       engine,
		Extractor: extract.NewDefault(),
		Open:      openMem(src),
		Notifier:  n,
		Retry:     noDelay,
		Now:       func() time.Time { return fixed },
	}
	if sink != nil {
		r.Sink = sink
	}
	return r
}

func imageRequest(n int) models.ProcessRequest {
	images := make([]string, n)
	for i := range images {
		images[i] = "page.png"
	}
	return models.ProcessRequest{
		Images:          images,
		ProjectID:       "p1",
		FileID:          "f1",
		ChunkSize:       2,
		ParallelWorkers: 3,
		Webhook:         "https://hooks.example/done",
	}
}

func TestRunner_EndToEnd(t *testing.T) {
	engine := newFakeOCR()
	engine.alwaysFail[3] = true
	sink := newMemSink()
	hook := &recordingNotifier{}

	out, err := newTestRunner(newMemSource(5), engine, sink, hook).Run(context.Background(), imageRequest(5))
	require.NoError(t, err)

	resp := out.Response
	assert.True(t, resp.Success)
	assert.Equal(t, "p1", resp.ProjectID)
	assert.Equal(t, "f1", resp.FileID)
	assert.Equal(t, 5, resp.TotalPages)
	assert.Equal(t, 4, resp.ProcessedPages)
	assert.Equal(t, []int{3}, resp.FailedPages)
	assert.Equal(t, "https://cdn.example/projects/p1/files/f1/json/final-results.json", resp.FinalJSONURL)
	assert.Equal(t, []string{
		"https://cdn.example/projects/p1/files/f1/images/page-001.png",
		"https://cdn.example/projects/p1/files/f1/images/page-002.png",
		"https://cdn.example/projects/p1/files/f1/images/page-004.png",
		"https://cdn.example/projects/p1/files/f1/images/page-005.png",
	}, resp.ImageURLs)

	raw, ok := sink.get("projects/p1/files/f1/json/final-results.json")
	require.True(t, ok)
	var doc aggregate.Document
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, 5, doc.ProcessingMetadata.TotalPages)
	assert.Equal(t, 4, doc.ProcessingMetadata.ProcessedPages)
	require.Len(t, doc.ProcessingMetadata.FailedPages, 1)
	assert.Equal(t, 3, doc.ProcessingMetadata.FailedPages[0].Page)
	assert.Contains(t, doc.ProcessingMetadata.FailedPages[0].Error, "page 3 failed after 3 attempt(s)")
	assert.Equal(t, "fake", doc.ProcessingMetadata.Configuration.OCREngine)
	assert.Equal(t, 3, doc.ProcessingMetadata.Configuration.RetryAttempts)
	assert.Equal(t, 4, doc.ProcessingMetadata.Statistics.TotalPatternsFound)
	assert.InDelta(t, 80.0, doc.ProcessingMetadata.Statistics.SuccessRate, 1e-9)

	require.Len(t, doc.Pages, 4)
	assert.Equal(t, 4, doc.Pages[2].PageNumber)
	assert.Equal(t, "https://cdn.example/projects/p1/files/f1/json/page-004.json", doc.Pages[2].JSONURL)
	assert.Equal(t, map[string]int{extract.CategoryMechanical: 1}, doc.Pages[2].PatternCount)

	assert.Len(t, doc.AggregatedPatterns, 4)
	assert.NotContains(t, doc.AggregatedPatterns, "M3")
	assert.Equal(t, []string{"M4"}, doc.SearchIndex.ByPage[4])

	pageJSON, ok := sink.get("projects/p1/files/f1/json/page-002.json")
	require.True(t, ok)
	var artifact aggregate.PageArtifact
	require.NoError(t, json.Unmarshal(pageJSON, &artifact))
	assert.Equal(t, 2, artifact.PageNumber)
	assert.Equal(t, 1, artifact.TotalPatterns)

	require.Len(t, hook.payloads, 1)
	assert.Equal(t, "https://hooks.example/done", hook.urls[0])
	assert.Equal(t, "completed", hook.payloads[0].Status)
	assert.Equal(t, []int{3}, hook.payloads[0].FailedPages)
	assert.Equal(t, resp.FinalJSONURL, hook.payloads[0].FinalJSONURL)

	assert.Len(t, out.Results, 5)
}

func TestRunner_UploadFailuresAreNotFatal(t *testing.T) {
	sink := newMemSink()
	sink.fail = func(key string) bool {
		return strings.HasSuffix(key, "final-results.json") || strings.HasSuffix(key, "page-001.png")
	}
	hook := &recordingNotifier{err: notify.ErrDeliveryFailed}

	resp, err := newTestRunner(newMemSource(2), newFakeOCR(), sink, hook).Process(context.Background(), imageRequest(2))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.ProcessedPages)
	assert.Empty(t, resp.FinalJSONURL)
	assert.Equal(t, []string{"https://cdn.example/projects/p1/files/f1/images/page-002.png"}, resp.ImageURLs)
	assert.Len(t, hook.payloads, 1)
}

func TestRunner_WithoutSink(t *testing.T) {
	resp, err := newTestRunner(newMemSource(3), newFakeOCR(), nil, nil).Process(context.Background(), imageRequest(3))
	require.NoError(t, err)

	assert.Equal(t, 3, resp.ProcessedPages)
	assert.Empty(t, resp.FinalJSONURL)
	assert.Empty(t, resp.ImageURLs)
	assert.NotNil(t, resp.FailedPages)
}

func TestRunner_PageLimit(t *testing.T) {
	r := newTestRunner(newMemSource(4), newFakeOCR(), nil, nil)
	r.MaxPages = 3

	_, err := r.Process(context.Background(), imageRequest(4))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pages", verr.Field)
}

func TestRunner_OpenFailure(t *testing.T) {
	r := newTestRunner(newMemSource(1), newFakeOCR(), nil, nil)
	r.Open = func(context.Context, models.ProcessRequest) (pages.Source, error) {
		return nil, pages.ErrNoPages
	}

	_, err := r.Process(context.Background(), imageRequest(1))
	assert.ErrorIs(t, err, ErrPipelineFailed)
	assert.ErrorIs(t, err, pages.ErrNoPages)
}

func TestRunner_PDFTooLarge(t *testing.T) {
	engine := newFakeOCR()
	r := newTestRunner(newMemSource(1), engine, nil, nil)
	r.Open = func(context.Context, models.ProcessRequest) (pages.Source, error) {
		return nil, &pages.SizeError{Size: 64 << 20, Limit: pages.MaxPDFBytes}
	}

	_, err := r.Process(context.Background(), models.ProcessRequest{PDFURL: "https://files.example/huge.pdf"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pdfUrl", verr.Field)
	assert.Contains(t, verr.Message, "20MB")
	assert.Zero(t, engine.callCount(1))
}

func TestRunner_ZeroRetryUsesDefault(t *testing.T) {
	r := newTestRunner(newMemSource(1), newFakeOCR(), nil, nil)
	r.Retry = RetryPolicy{}
	assert.Equal(t, DefaultRetryPolicy(), r.retryPolicy())

	r.Retry = RetryPolicy{MaxAttempts: -1, Delay: time.Second}
	assert.Equal(t, DefaultRetryPolicy(), r.retryPolicy())

	r.Retry = noDelay
	assert.Equal(t, noDelay, r.retryPolicy())
}

func TestRunner_ZeroRetryRecordsDefaultAttempts(t *testing.T) {
	r := newTestRunner(newMemSource(2), newFakeOCR(), nil, nil)
	r.Retry = RetryPolicy{}

	out, err := r.Run(context.Background(), imageRequest(2))
	require.NoError(t, err)
	assert.Equal(t, DefaultRetryAttempts, out.Document.ProcessingMetadata.Configuration.RetryAttempts)
	assert.Equal(t, 2, out.Response.ProcessedPages)
}

func TestRunner_InvalidRequest(t *testing.T) {
	r := newTestRunner(newMemSource(1), newFakeOCR(), nil, nil)

	_, err := r.Process(context.Background(), models.ProcessRequest{})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestNormalizeRequest(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		req, err := NormalizeRequest(models.ProcessRequest{PDFURL: " https://files.example/set.pdf "})
		require.NoError(t, err)

		assert.Equal(t, "https://files.example/set.pdf", req.PDFURL)
		assert.Equal(t, DefaultChunkSize, req.ChunkSize)
		assert.Equal(t, DefaultWorkers, req.ParallelWorkers)
		assert.Equal(t, DefaultProjectID, req.ProjectID)
		assert.Regexp(t, `^file-[0-9a-f]{8}$`, req.FileID)
	})

	invalid := []struct {
		name  string
		req   models.ProcessRequest
		field string
	}{
		{"no source", models.ProcessRequest{}, "pdfUrl"},
		{"both sources", models.ProcessRequest{PDFURL: "https://x/a.pdf", Images: []string{"a.png"}}, "images"},
		{"pdf not http", models.ProcessRequest{PDFURL: "ftp://x/a.pdf"}, "pdfUrl"},
		{"blank image", models.ProcessRequest{Images: []string{"a.png", " "}}, "images[1]"},
		{"chunk too large", models.ProcessRequest{Images: []string{"a.png"}, ChunkSize: 16}, "chunkSize"},
		{"negative chunk", models.ProcessRequest{Images: []string{"a.png"}, ChunkSize: -2}, "chunkSize"},
		{"too many workers", models.ProcessRequest{Images: []string{"a.png"}, ParallelWorkers: 51}, "parallelWorkers"},
		{"bad webhook", models.ProcessRequest{Images: []string{"a.png"}, Webhook: "not a url"}, "webhook"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeRequest(tt.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestHTTPSourceOpener_RejectsLocalPaths(t *testing.T) {
	open := HTTPSourceOpener(nil)

	for _, images := range [][]string{
		{"/etc/passwd"},
		{"https://x/a.png", "b.png"},
		{"file:///etc/hosts"},
	} {
		_, err := open(context.Background(), models.ProcessRequest{Images: images})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "images %v", images)
		assert.Contains(t, verr.Field, "images[")
		assert.Equal(t, "must be an http(s) URL", verr.Message)
	}
}

func TestRunner_RejectsLocalPathsWithHTTPOpener(t *testing.T) {
	r := newTestRunner(newMemSource(1), newFakeOCR(), nil, nil)
	r.Open = HTTPSourceOpener(nil)

	_, err := r.Run(context.Background(), models.ProcessRequest{Images: []string{"/var/data/secret.png"}})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "images[0]", verr.Field)
}

func TestLocalSourceOpener(t *testing.T) {
	open := LocalSourceOpener(nil)

	_, err := open(context.Background(), models.ProcessRequest{Images: []string{"https://x/a.png", "b.png"}})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	dir := t.TempDir()
	path := filepath.Join(dir, "page.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))

	src, err := open(context.Background(), models.ProcessRequest{Images: []string{path}})
	require.NoError(t, err)
	assert.Equal(t, 1, src.Count())
}
