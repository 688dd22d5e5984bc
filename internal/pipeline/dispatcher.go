// Package pipeline runs callout extraction jobs: pages are split into chunks,
// chunks are processed by a bounded worker pool (OCR then extraction, with
// retries) and the results are aggregated, uploaded and reported.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"callouts/internal/extract"
	"callouts/internal/logger"
	"callouts/internal/ocr"
	"callouts/internal/pages"
)

const (
	// MaxWorkers caps the worker pool.
	MaxWorkers = 50

	// DefaultWorkers is used when a request does not set a pool size.
	DefaultWorkers = 30
)

// Dispatcher processes chunks concurrently. Pages inside a chunk are handled
// one after another by the same worker.
type Dispatcher struct {
	source    pages.Source
	ocr       ocr.Service
	extractor *extract.Extractor
	workers   int
	retry     RetryPolicy
	log       zerolog.Logger
}

// NewDispatcher validates the pool size and builds a dispatcher. The OCR
// service and extractor are shared by all workers.
func NewDispatcher(source pages.Source, ocrService ocr.Service, extractor *extract.Extractor, workers int, retry RetryPolicy) (*Dispatcher, error) {
	if workers < 1 || workers > MaxWorkers {
		return nil, &ValidationError{
			Field:   "parallel_workers",
			Value:   workers,
			Message: fmt.Sprintf("must be between 1 and %d", MaxWorkers),
		}
	}
	if source == nil || ocrService == nil || extractor == nil {
		return nil, &PipelineFatalError{Op: "NewDispatcher", Err: ErrPipelineFailed, Details: "source, OCR service and extractor are required"}
	}
	return &Dispatcher{
		source:    source,
		ocr:       ocrService,
		extractor: extractor,
		workers:   workers,
		retry:     retry,
		log:       logger.WithComponent("dispatcher"),
	}, nil
}

// WithLogger replaces the dispatcher's logger.
func (d *Dispatcher) WithLogger(log zerolog.Logger) *Dispatcher {
	d.log = log
	return d
}

// Run processes all chunks and returns exactly one result per page, sorted
// by page number.
func (d *Dispatcher) Run(ctx context.Context, chunks []Chunk) []PageResult {
	total := 0
	for _, c := range chunks {
		total += len(c.Tasks)
	}

	jobs := make(chan Chunk, len(chunks))
	results := make([]PageResult, 0, total)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	numWorkers := min(d.workers, max(len(chunks), 1))
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			var local []PageResult
			for chunk := range jobs {
				d.log.Debug().
					Int("worker", workerID).
					Int("chunk", chunk.Index).
					Ints("pages", chunk.Pages()).
					Msg("Worker processing chunk")

				local = append(local, d.runChunk(ctx, chunk)...)
			}

			mu.Lock()
			results = append(results, local...)
			mu.Unlock()
		}(w)
	}

	for _, c := range chunks {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	SortResults(results)
	return results
}

// runChunk processes the pages of chunk in order. If the chunk fails outside
// the per-page retry loop its partial results are dropped and every page is
// reported with a ChunkFatalError.
func (d *Dispatcher) runChunk(ctx context.Context, chunk Chunk) (results []PageResult) {
	defer func() {
		if r := recover(); r != nil {
			results = d.failChunk(chunk, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return d.failChunk(chunk, err)
	}

	results = make([]PageResult, 0, len(chunk.Tasks))
	for _, task := range chunk.Tasks {
		results = append(results, d.processPage(ctx, task))
	}
	return results
}

func (d *Dispatcher) failChunk(chunk Chunk, cause error) []PageResult {
	err := &ChunkFatalError{Chunk: chunk.Index, Pages: chunk.Pages(), Err: cause}
	d.log.Error().Err(err).Int("chunk", chunk.Index).Msg("Chunk failed")

	out := make([]PageResult, len(chunk.Tasks))
	for i, task := range chunk.Tasks {
		out[i] = PageResult{Page: task.Page, Err: err}
	}
	return out
}

// processPage fetches, recognizes and extracts one page under the retry
// policy. A fetched page is reused across attempts.
func (d *Dispatcher) processPage(ctx context.Context, task PageTask) PageResult {
	start := time.Now()
	log := d.log.With().Int("page", task.Page).Logger()

	var (
		page    *pages.Page
		fetched pages.Page
		result  PageResult
	)
	attempts, err := d.retry.Do(ctx, func(attempt int) error {
		if page == nil {
			p, err := d.source.Page(ctx, task.Page)
			if err != nil {
				log.Warn().Err(err).Int("attempt", attempt).Msg("Page fetch failed")
				return err
			}
			fetched = p
			page = &fetched
		}

		text, err := d.ocr.DetectText(ctx, page.Input())
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("OCR failed")
			return err
		}

		result = PageResult{
			Page:            task.Page,
			TokensProcessed: len(text.Tokens),
			Candidates:      d.extractor.Extract(task.Page, text),
		}
		if page.IsImage() {
			result.Image = page.Content
			result.ImageType = page.MimeType
		}
		return nil
	})

	if err != nil {
		perr := &PageProcessingError{Page: task.Page, Attempts: attempts, Err: err}
		log.Error().Err(perr).Msg("Page failed")
		return PageResult{Page: task.Page, Attempts: attempts, Duration: time.Since(start), Err: perr}
	}

	result.Attempts = attempts
	result.Duration = time.Since(start)
	log.Debug().
		Int("tokens", result.TokensProcessed).
		Int("candidates", len(result.Candidates)).
		Int("attempts", attempts).
		Dur("duration", result.Duration).
		Msg("Page processed")
	return result
}
