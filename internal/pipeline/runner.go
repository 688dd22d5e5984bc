package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"callouts/internal/aggregate"
	"callouts/internal/extract"
	"callouts/internal/logger"
	"callouts/internal/notify"
	"callouts/internal/ocr"
	"callouts/internal/pages"
	"callouts/internal/storage"
	"callouts/pkg/models"
)

// DefaultMaxPages caps the pages of a single job.
const DefaultMaxPages = 50

// Runner executes complete jobs: validation, page processing, aggregation,
// artifact upload and notification.
type Runner struct {
	OCR       ocr.Service
	Extractor *extract.Extractor
	Open      SourceOpener

	// Sink receives artifacts. Nil skips all uploads.
	Sink          storage.Sink
	UploadWorkers int

	// Notifier delivers webhooks. Nil skips delivery.
	Notifier notify.Notifier

	// Retry applies per page. A zero MaxAttempts uses DefaultRetryPolicy.
	Retry    RetryPolicy
	MaxPages int
	TopK     int

	// Now is the clock used for timestamps; nil uses time.Now.
	Now func() time.Time
}

// Outcome is everything a finished job produced.
type Outcome struct {
	Response models.ProcessResponse
	Document aggregate.Document
	Results  []PageResult
}

// Process runs a job and returns its response. Validation and setup
// failures are returned as errors; page failures are reported in the
// response.
func (r *Runner) Process(ctx context.Context, req models.ProcessRequest) (models.ProcessResponse, error) {
	out, err := r.Run(ctx, req)
	if err != nil {
		return models.ProcessResponse{}, err
	}
	return out.Response, nil
}

// Run is Process with the assembled document and raw page results.
func (r *Runner) Run(ctx context.Context, req models.ProcessRequest) (*Outcome, error) {
	const op = "Run"
	start := r.now()

	req, err := NormalizeRequest(req)
	if err != nil {
		return nil, err
	}
	if r.OCR == nil || r.Extractor == nil || r.Open == nil {
		return nil, &PipelineFatalError{Op: op, Err: ErrPipelineFailed, Details: "runner is missing OCR, extractor or source opener"}
	}

	log := logger.WithJob("pipeline", req.ProjectID, req.FileID)
	log.Info().
		Str("pdf_url", req.PDFURL).
		Int("images", len(req.Images)).
		Int("chunk_size", req.ChunkSize).
		Int("workers", req.ParallelWorkers).
		Msg("Starting job")

	source, err := r.Open(ctx, req)
	if errors.Is(err, pages.ErrDocumentTooLarge) {
		return nil, &ValidationError{Field: "pdfUrl", Value: req.PDFURL, Message: fmt.Sprintf("PDF exceeds the %dMB OCR request limit: %v", pages.MaxPDFBytes>>20, err)}
	}
	if err != nil {
		return nil, WrapPipelineError("OpenSource", err, "could not open document")
	}

	total := source.Count()
	maxPages := r.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if total > maxPages {
		return nil, &ValidationError{Field: "pages", Value: total, Message: fmt.Sprintf("document exceeds the limit of %d pages", maxPages)}
	}

	chunks, err := ChunkPages(TasksFor(source), req.ChunkSize)
	if err != nil {
		return nil, err
	}

	dispatcher, err := NewDispatcher(source, r.OCR, r.Extractor, req.ParallelWorkers, r.retryPolicy())
	if err != nil {
		return nil, err
	}
	dispatcher.WithLogger(log.With().Str("component", "dispatcher").Logger())

	log.Info().Int("pages", total).Int("chunks", len(chunks)).Msg("Dispatching chunks")
	results := dispatcher.Run(ctx, chunks)

	succeeded, failed := Partition(results)
	agg := aggregate.New()
	for _, res := range succeeded {
		agg.Add(res.Candidates...)
	}

	urls := r.uploadPages(ctx, req, succeeded, log)

	doc := r.buildDocument(req, total, succeeded, failed, agg, urls, start)

	finalURL := r.uploadDocument(ctx, req, &doc, log)

	resp := models.ProcessResponse{
		Success:               true,
		ProjectID:             req.ProjectID,
		FileID:                req.FileID,
		TotalPages:            total,
		ProcessedPages:        len(succeeded),
		FailedPages:           FailedPages(results),
		FinalJSONURL:          finalURL,
		ImageURLs:             imageURLs(succeeded, urls),
		ProcessingTimeSeconds: doc.ProcessingMetadata.ProcessingTimeSeconds,
	}

	r.notify(ctx, req.Webhook, resp, log)

	log.Info().
		Int("total_pages", total).
		Int("processed", resp.ProcessedPages).
		Ints("failed", resp.FailedPages).
		Int("items", agg.Len()).
		Float64("seconds", resp.ProcessingTimeSeconds).
		Msg("Job completed")

	return &Outcome{Response: resp, Document: doc, Results: results}, nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// retryPolicy is r.Retry, or DefaultRetryPolicy when no attempts are set.
func (r *Runner) retryPolicy() RetryPolicy {
	if r.Retry.MaxAttempts <= 0 {
		return DefaultRetryPolicy()
	}
	return r.Retry
}

func imageTaskID(page int) string { return fmt.Sprintf("image:%d", page) }
func jsonTaskID(page int) string  { return fmt.Sprintf("json:%d", page) }

// uploadPages stores each successful page's image and JSON artifact.
func (r *Runner) uploadPages(ctx context.Context, req models.ProcessRequest, succeeded []PageResult, log zerolog.Logger) map[string]string {
	if r.Sink == nil || len(succeeded) == 0 {
		return map[string]string{}
	}

	now := r.now()
	tasks := make([]storage.UploadTask, 0, 2*len(succeeded))
	for _, res := range succeeded {
		if len(res.Image) > 0 {
			tasks = append(tasks, storage.UploadTask{
				ID:          imageTaskID(res.Page),
				Key:         storage.ImageKey(req.ProjectID, req.FileID, res.Page, res.ImageType),
				Body:        res.Image,
				ContentType: res.ImageType,
			})
		}

		body, err := json.Marshal(aggregate.NewPageArtifact(res.Page, res.Candidates, now))
		if err != nil {
			log.Error().Err(err).Int("page", res.Page).Msg("Failed to encode page artifact")
			continue
		}
		tasks = append(tasks, storage.UploadTask{
			ID:          jsonTaskID(res.Page),
			Key:         storage.PageJSONKey(req.ProjectID, req.FileID, res.Page),
			Body:        body,
			ContentType: storage.ContentTypeJSON,
		})
	}

	return storage.NewBatchUploader(r.Sink, r.UploadWorkers).Upload(ctx, tasks)
}

func (r *Runner) buildDocument(req models.ProcessRequest, total int, succeeded, failed []PageResult, agg *aggregate.Aggregator, urls map[string]string, start time.Time) aggregate.Document {
	entries := make([]aggregate.PageEntry, 0, len(succeeded))
	durations := make([]time.Duration, 0, len(succeeded))
	totalPatterns := 0
	for _, res := range succeeded {
		cands := res.Candidates
		if cands == nil {
			cands = []extract.Candidate{}
		}
		entries = append(entries, aggregate.PageEntry{
			PageNumber:   res.Page,
			URL:          urls[imageTaskID(res.Page)],
			JSONURL:      urls[jsonTaskID(res.Page)],
			Patterns:     cands,
			PatternCount: aggregate.PatternCounts(cands),
		})
		durations = append(durations, res.Duration)
		totalPatterns += len(cands)
	}

	failures := make([]aggregate.FailedPage, 0, len(failed))
	for _, res := range failed {
		failures = append(failures, aggregate.FailedPage{Page: res.Page, Error: res.Err.Error()})
	}

	finished := r.now()

	return aggregate.Document{
		ProjectID: req.ProjectID,
		FileID:    req.FileID,
		ProcessingMetadata: aggregate.Metadata{
			TotalPages:            total,
			ProcessedPages:        len(succeeded),
			FailedPages:           failures,
			ProcessingTimeSeconds: finished.Sub(start).Seconds(),
			Timestamp:             finished.UTC(),
			Configuration: aggregate.Configuration{
				ChunkSize:       req.ChunkSize,
				ParallelWorkers: req.ParallelWorkers,
				RetryAttempts:   r.retryPolicy().MaxAttempts,
				OCREngine:       r.OCR.Name(),
			},
			Statistics: aggregate.NewProcessingStats(durations, totalPatterns, total),
		},
		Pages:              entries,
		AggregatedPatterns: agg.ItemMap(),
		SearchIndex:        agg.Index(),
		Statistics:         agg.Statistics(r.TopK),
	}
}

// uploadDocument stores the final document and returns its URL, or "" when
// there is no sink or the upload failed.
func (r *Runner) uploadDocument(ctx context.Context, req models.ProcessRequest, doc *aggregate.Document, log zerolog.Logger) string {
	if r.Sink == nil {
		return ""
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode final document")
		return ""
	}

	key := storage.FinalJSONKey(req.ProjectID, req.FileID)
	url, err := r.Sink.Put(ctx, key, body, storage.ContentTypeJSON)
	if err != nil {
		log.Error().Err(&storage.UploadError{Key: key, Err: err}).Msg("Final document upload failed")
		return ""
	}
	return url
}

func (r *Runner) notify(ctx context.Context, webhook string, resp models.ProcessResponse, log zerolog.Logger) {
	if webhook == "" || r.Notifier == nil {
		return
	}

	payload := notify.Payload{
		Status:                "completed",
		ProjectID:             resp.ProjectID,
		FileID:                resp.FileID,
		TotalPages:            resp.TotalPages,
		ProcessedPages:        resp.ProcessedPages,
		FailedPages:           resp.FailedPages,
		FinalJSONURL:          resp.FinalJSONURL,
		ProcessingTimeSeconds: resp.ProcessingTimeSeconds,
		Timestamp:             r.now().UTC(),
	}
	if err := r.Notifier.Notify(ctx, webhook, payload); err != nil {
		log.Warn().Err(err).Str("webhook", webhook).Msg("Webhook delivery failed")
		return
	}
	log.Debug().Str("webhook", webhook).Msg("Webhook delivered")
}

func imageURLs(succeeded []PageResult, urls map[string]string) []string {
	out := []string{}
	for _, res := range succeeded {
		if u, ok := urls[imageTaskID(res.Page)]; ok {
			out = append(out, u)
		}
	}
	return out
}
