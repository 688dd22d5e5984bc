package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"callouts/internal/ocr"
	"callouts/internal/pages"
)

// memSource serves pages whose content is the page number.
type memSource struct {
	n         int
	failFetch map[int]bool

	mu      sync.Mutex
	fetches map[int]int
}

func newMemSource(n int) *memSource {
	return &memSource{n: n, failFetch: map[int]bool{}, fetches: map[int]int{}}
}

func (s *memSource) Count() int { return s.n }

func (s *memSource) Ref(n int) pages.Ref { return pages.Ref(fmt.Sprintf("mem://%d", n)) }

func (s *memSource) Page(_ context.Context, n int) (pages.Page, error) {
	s.mu.Lock()
	s.fetches[n]++
	s.mu.Unlock()

	if n < 1 || n > s.n {
		return pages.Page{}, pages.ErrPageOutOfRange
	}
	if s.failFetch[n] {
		return pages.Page{}, &pages.FetchError{Page: n, Ref: s.Ref(n), Err: errors.New("connection reset")}
	}
	return pages.Page{
		Number:   n,
		Ref:      s.Ref(n),
		Content:  []byte(strconv.Itoa(n)),
		MimeType: ocr.MimeTypePNG,
	}, nil
}

func (s *memSource) fetchCount(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[n]
}

// fakeOCR returns a single "M<page>" token per page.
type fakeOCR struct {
	mu         sync.Mutex
	calls      map[int]int
	failFirst  map[int]int
	alwaysFail map[int]bool
	panicOn    int
}

func newFakeOCR() *fakeOCR {
	return &fakeOCR{calls: map[int]int{}, failFirst: map[int]int{}, alwaysFail: map[int]bool{}}
}

func (f *fakeOCR) Name() string { return "fake" }

func (f *fakeOCR) DetectText(_ context.Context, in ocr.Input) (*ocr.PageText, error) {
	page, err := strconv.Atoi(string(in.Content))
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls[page]++
	n := f.calls[page]
	f.mu.Unlock()

	if page == f.panicOn {
		panic("engine crashed")
	}
	if f.alwaysFail[page] || n <= f.failFirst[page] {
		return nil, ocr.NewOCRError("DetectText", ocr.ErrOCRFailed, "service unavailable")
	}
	return &ocr.PageText{
		Tokens: []ocr.Token{{
			Text:       fmt.Sprintf("M%d", page),
			BBox:       ocr.RectQuad(10, 10, 20, 20),
			Confidence: 0.9,
		}},
	}, nil
}

func (f *fakeOCR) callCount(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[page]
}

// memSink stores objects in memory.
type memSink struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    func(key string) bool
}

func newMemSink() *memSink { return &memSink{objects: map[string][]byte{}} }

func (s *memSink) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	if s.fail != nil && s.fail(key) {
		return "", errors.New("bucket unavailable")
	}
	s.mu.Lock()
	s.objects[key] = body
	s.mu.Unlock()
	return "https://cdn.example/" + key, nil
}

func (s *memSink) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	return b, ok
}
