package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callouts/internal/extract"
	"callouts/internal/ocr"
	"callouts/internal/pages"
)

var noDelay = RetryPolicy{MaxAttempts: 3}

func runPages(ctx context.Context, t *testing.T, src *memSource, engine *fakeOCR, chunkSize, workers int) []PageResult {
	t.Helper()
	d, err := NewDispatcher(src, engine, extract.NewDefault(), workers, noDelay)
	require.NoError(t, err)

	chunks, err := ChunkPages(TasksFor(src), chunkSize)
	require.NoError(t, err)
	return d.Run(ctx, chunks)
}

func pagesOf(results []PageResult) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Page
	}
	return out
}

func TestDispatcher_EighteenPagesSorted(t *testing.T) {
	results := runPages(context.Background(), t, newMemSource(18), newFakeOCR(), 5, 3)

	require.Len(t, results, 18)
	for i, r := range results {
		assert.Equal(t, i+1, r.Page)
		require.True(t, r.Succeeded(), "page %d: %v", r.Page, r.Err)
		assert.Equal(t, 1, r.TokensProcessed)
		require.Len(t, r.Candidates, 1)
		assert.Equal(t, r.Page, r.Candidates[0].Page)
		assert.Equal(t, extract.CategoryMechanical, r.Candidates[0].Category)
		assert.Equal(t, []byte(strconv.Itoa(r.Page)), r.Image)
	}
}

// trackingOCR records the order pages reach the engine in each chunk and the
// peak number of chunks and calls in flight.
type trackingOCR struct {
	*fakeOCR
	chunkSize int
	total     int

	mu          sync.Mutex
	order       map[int][]int
	activeCalls int
	peakCalls   int
	openChunks  int
	peakChunks  int
}

func newTrackingOCR(total, chunkSize int) *trackingOCR {
	return &trackingOCR{fakeOCR: newFakeOCR(), chunkSize: chunkSize, total: total, order: map[int][]int{}}
}

func (o *trackingOCR) DetectText(ctx context.Context, in ocr.Input) (*ocr.PageText, error) {
	page, err := strconv.Atoi(string(in.Content))
	if err != nil {
		return nil, err
	}
	chunk := (page - 1) / o.chunkSize
	first := chunk*o.chunkSize + 1
	last := min(first+o.chunkSize-1, o.total)

	o.mu.Lock()
	o.order[chunk] = append(o.order[chunk], page)
	o.activeCalls++
	o.peakCalls = max(o.peakCalls, o.activeCalls)
	if page == first {
		o.openChunks++
		o.peakChunks = max(o.peakChunks, o.openChunks)
	}
	o.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	o.mu.Lock()
	o.activeCalls--
	if page == last {
		o.openChunks--
	}
	o.mu.Unlock()

	return o.fakeOCR.DetectText(ctx, in)
}

func TestDispatcher_ChunkOrderAndConcurrency(t *testing.T) {
	cases := []struct {
		pages, chunkSize, workers int
	}{
		{18, 5, 3},
		{30, 2, 4},
		{7, 3, 1},
		{12, 1, 10},
	}
	for _, tc := range cases {
		src := newMemSource(tc.pages)
		engine := newTrackingOCR(tc.pages, tc.chunkSize)

		d, err := NewDispatcher(src, engine, extract.NewDefault(), tc.workers, noDelay)
		require.NoError(t, err)
		chunks, err := ChunkPages(TasksFor(src), tc.chunkSize)
		require.NoError(t, err)

		results := d.Run(context.Background(), chunks)
		require.Len(t, results, tc.pages)

		for i, chunk := range chunks {
			assert.Equal(t, chunk.Pages(), engine.order[i], "chunk %d of %+v", i, tc)
		}
		assert.LessOrEqual(t, engine.peakChunks, tc.workers, "%+v", tc)
		assert.LessOrEqual(t, engine.peakCalls, tc.workers, "%+v", tc)
		assert.Zero(t, engine.openChunks)
	}
}

func TestDispatcher_RetryThenSuccess(t *testing.T) {
	src := newMemSource(5)
	engine := newFakeOCR()
	engine.failFirst[4] = 2

	results := runPages(context.Background(), t, src, engine, 2, 2)

	require.Len(t, results, 5)
	r := results[3]
	require.True(t, r.Succeeded())
	assert.Equal(t, 3, r.Attempts)
	assert.Equal(t, 3, engine.callCount(4))
	assert.Equal(t, 1, src.fetchCount(4), "fetched page is reused across attempts")
}

func TestDispatcher_PermanentFailureIsolated(t *testing.T) {
	engine := newFakeOCR()
	engine.alwaysFail[2] = true

	results := runPages(context.Background(), t, newMemSource(6), engine, 3, 2)

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, pagesOf(results))
	assert.Equal(t, []int{2}, FailedPages(results))

	failed := results[1]
	assert.ErrorIs(t, failed.Err, ErrPageFailed)
	var perr *PageProcessingError
	require.ErrorAs(t, failed.Err, &perr)
	assert.Equal(t, 2, perr.Page)
	assert.Equal(t, 3, perr.Attempts)
	assert.Equal(t, 3, engine.callCount(2))

	// The rest of the chunk still ran.
	assert.True(t, results[2].Succeeded())
}

func TestDispatcher_FetchFailure(t *testing.T) {
	src := newMemSource(3)
	src.failFetch[3] = true

	results := runPages(context.Background(), t, src, newFakeOCR(), 1, 3)

	assert.Equal(t, []int{3}, FailedPages(results))
	assert.ErrorIs(t, results[2].Err, pages.ErrFetchFailed)
	assert.Equal(t, 3, src.fetchCount(3))
}

func TestDispatcher_PanicFailsWholeChunk(t *testing.T) {
	engine := newFakeOCR()
	engine.panicOn = 4

	results := runPages(context.Background(), t, newMemSource(8), engine, 3, 2)

	require.Len(t, results, 8)
	assert.Equal(t, []int{4, 5, 6}, FailedPages(results))
	for _, r := range results[3:6] {
		assert.ErrorIs(t, r.Err, ErrChunkFailed)
		var cerr *ChunkFatalError
		require.ErrorAs(t, r.Err, &cerr)
		assert.Equal(t, 1, cerr.Chunk)
		assert.Equal(t, []int{4, 5, 6}, cerr.Pages)
		assert.Empty(t, r.Candidates)
	}
	assert.Zero(t, engine.callCount(5))
}

func TestDispatcher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := newFakeOCR()
	results := runPages(ctx, t, newMemSource(4), engine, 2, 2)

	require.Len(t, results, 4)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, ErrChunkFailed)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, engine.callCount(1))
}

func TestDispatcher_NoChunks(t *testing.T) {
	results := runPages(context.Background(), t, newMemSource(0), newFakeOCR(), 2, 4)
	assert.Empty(t, results)
}

func TestNewDispatcher_Validation(t *testing.T) {
	for _, w := range []int{0, -1, MaxWorkers + 1} {
		_, err := NewDispatcher(newMemSource(1), newFakeOCR(), extract.NewDefault(), w, noDelay)
		assert.True(t, errors.Is(err, ErrInvalidRequest), "workers=%d", w)
	}

	_, err := NewDispatcher(nil, newFakeOCR(), extract.NewDefault(), 1, noDelay)
	assert.ErrorIs(t, err, ErrPipelineFailed)
}
