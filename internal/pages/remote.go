package pages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"callouts/internal/ocr"
)

// DefaultFetchTimeout bounds a single download.
const DefaultFetchTimeout = 60 * time.Second

// MaxDownloadBytes caps any single download.
const MaxDownloadBytes = 200 * 1024 * 1024

// MaxPDFBytes caps a PDF document. Every page is sent to OCR as the whole
// document, so it shares the engines' request limit.
const MaxPDFBytes = ocr.MaxContentBytes

// URLSource serves page images from URLs, one URL per page.
type URLSource struct {
	urls   []string
	client *http.Client
}

// NewURLSource creates a source over image URLs in page order. A nil client
// uses one with DefaultFetchTimeout.
func NewURLSource(urls []string, client *http.Client) (*URLSource, error) {
	if len(urls) == 0 {
		return nil, ErrNoPages
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &URLSource{urls: append([]string(nil), urls...), client: client}, nil
}

// Count implements Source.
func (s *URLSource) Count() int { return len(s.urls) }

// Ref implements Source.
func (s *URLSource) Ref(n int) Ref {
	if checkRange(n, len(s.urls)) != nil {
		return ""
	}
	return Ref(s.urls[n-1])
}

// Page implements Source.
func (s *URLSource) Page(ctx context.Context, n int) (Page, error) {
	if err := checkRange(n, len(s.urls)); err != nil {
		return Page{}, err
	}

	url := s.urls[n-1]
	content, contentType, err := download(ctx, s.client, url, MaxDownloadBytes)
	if err != nil {
		return Page{}, &FetchError{Page: n, Ref: Ref(url), Err: err}
	}

	mimeType := mimeTypeFor(url)
	if strings.HasPrefix(contentType, "image/") {
		mimeType = contentType
	}
	return Page{
		Number:   n,
		Ref:      Ref(url),
		Content:  content,
		MimeType: mimeType,
	}, nil
}

// PDFSource serves the pages of one PDF document. The document is held in
// memory and each page is handed to OCR as the whole PDF plus a page index.
type PDFSource struct {
	origin string
	data   []byte
	count  int
}

// OpenPDFURL downloads a PDF and counts its pages. Documents over
// MaxPDFBytes fail with ErrDocumentTooLarge.
func OpenPDFURL(ctx context.Context, client *http.Client, url string) (*PDFSource, error) {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	data, _, err := download(ctx, client, url, MaxPDFBytes)
	if err != nil {
		var tooLarge *SizeError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, &FetchError{Ref: Ref(url), Err: err}
	}
	return NewPDFSource(url, data)
}

// NewPDFSource wraps PDF bytes already in memory.
func NewPDFSource(origin string, data []byte) (*PDFSource, error) {
	if len(data) > MaxPDFBytes {
		return nil, &SizeError{Size: int64(len(data)), Limit: MaxPDFBytes}
	}
	count, err := CountPDFPages(data)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNoPages
	}
	return &PDFSource{origin: origin, data: data, count: count}, nil
}

// CountPDFPages returns the number of pages in a PDF document.
func CountPDFPages(data []byte) (int, error) {
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return 0, fmt.Errorf("%w: missing PDF header", ErrFetchFailed)
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: parse PDF: %v", ErrFetchFailed, err)
	}
	return r.NumPage(), nil
}

// Count implements Source.
func (s *PDFSource) Count() int { return s.count }

// Ref implements Source.
func (s *PDFSource) Ref(n int) Ref {
	return Ref(fmt.Sprintf("%s#page=%d", s.origin, n))
}

// Page implements Source.
func (s *PDFSource) Page(ctx context.Context, n int) (Page, error) {
	if err := checkRange(n, s.count); err != nil {
		return Page{}, err
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	return Page{
		Number:    n,
		Ref:       s.Ref(n),
		Content:   s.data,
		MimeType:  ocr.MimeTypePDF,
		PageIndex: n,
	}, nil
}

func download(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if resp.ContentLength > limit {
		return nil, "", &SizeError{Size: resp.ContentLength, Limit: limit}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(body)) > limit {
		return nil, "", &SizeError{Size: int64(len(body)), Limit: limit}
	}
	contentType := resp.Header.Get("Content-Type")
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return body, contentType, nil
}

// SizeError reports content over a byte limit. Size is a lower bound when
// the body was cut off at the limit.
type SizeError struct {
	Size  int64
	Limit int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%d bytes exceeds the %d byte limit", e.Size, e.Limit)
}

// Is matches ErrDocumentTooLarge.
func (e *SizeError) Is(target error) bool {
	return target == ErrDocumentTooLarge
}
