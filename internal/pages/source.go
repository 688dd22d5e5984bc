// Package pages resolves the pages of a job into OCR-ready bytes.
//
// A Source is built once per job and fetched from by every dispatcher
// worker, one call per page.
package pages

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"callouts/internal/ocr"
)

var (
	// ErrPageOutOfRange is returned for page numbers outside [1, Count()].
	ErrPageOutOfRange = errors.New("page number out of range")

	// ErrNoPages is returned when a source would contain no pages.
	ErrNoPages = errors.New("document has no pages")

	// ErrFetchFailed is returned when page bytes cannot be retrieved.
	ErrFetchFailed = errors.New("page fetch failed")

	// ErrDocumentTooLarge is returned for a PDF the OCR engines cannot accept.
	ErrDocumentTooLarge = errors.New("document too large")
)

// Ref locates a page's origin: a file path, an image URL or a PDF URL with a
// page fragment.
type Ref string

// Page is one page ready for OCR.
type Page struct {
	Number   int
	Ref      Ref
	Content  []byte
	MimeType string

	// PageIndex is the 1-based page inside a PDF Content.
	PageIndex int
}

// Input converts the page into an OCR request.
func (p Page) Input() ocr.Input {
	return ocr.Input{Content: p.Content, MimeType: p.MimeType, PageIndex: p.PageIndex}
}

// IsImage reports whether Content is a standalone page image.
func (p Page) IsImage() bool {
	return p.MimeType != ocr.MimeTypePDF
}

// Source provides pages by 1-based number.
type Source interface {
	// Count is the number of pages.
	Count() int

	// Ref describes page n without fetching it.
	Ref(n int) Ref

	// Page fetches page n.
	Page(ctx context.Context, n int) (Page, error)
}

// FetchError wraps a page retrieval failure.
type FetchError struct {
	Page int
	Ref  Ref
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("pages: fetch page %d (%s): %v", e.Page, e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches ErrFetchFailed in addition to the wrapped error.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

func checkRange(n, count int) error {
	if n < 1 || n > count {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrPageOutOfRange, n, count)
	}
	return nil
}

// mimeTypeFor guesses the image type from a path or URL.
func mimeTypeFor(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return ocr.MimeTypePNG
	case ".pdf":
		return ocr.MimeTypePDF
	default:
		return ocr.MimeTypeJPEG
	}
}
