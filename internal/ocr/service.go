// Package ocr turns page images into positioned text tokens.
//
// The rest of the module only depends on the Service interface and the
// token/paragraph model defined here. Vendor adapters live next to it:
//   - GoogleVisionService: Google Cloud Vision DOCUMENT_TEXT_DETECTION (default)
//   - DocumentAIService: Google Document AI OCR processor
//   - tesseract.Engine: local Tesseract via gosseract (subpackage, requires cgo)
//
// Any adapter may be wrapped with NewCachedService to reuse results across
// retries and re-runs of the same document.
//
// Credentials for the Google adapters are read from the environment:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// Adapters are built once per process and shared by every dispatcher worker,
// so implementations must be safe for concurrent use.
package ocr

import (
	"context"
	"time"
)

const (
	// MimeTypeJPEG is the content type used for rasterized pages.
	MimeTypeJPEG = "image/jpeg"

	// MimeTypePNG is accepted for uploaded page images.
	MimeTypePNG = "image/png"

	// MimeTypePDF marks an Input that carries a whole PDF plus a page selector.
	MimeTypePDF = "application/pdf"

	// DefaultTimeout bounds a single OCR call.
	DefaultTimeout = 30 * time.Second
)

// Service defines the interface for positioned-text OCR.
type Service interface {
	// Name identifies the engine in logs and processing metadata.
	Name() string

	// DetectText runs OCR on one page and returns its tokens and paragraphs.
	DetectText(ctx context.Context, in Input) (*PageText, error)
}

// Input is a single page submitted for OCR.
type Input struct {
	// Content is the encoded page. For MimeTypePDF it is the whole document.
	Content []byte

	// MimeType declares the content type of Content.
	MimeType string

	// PageIndex is the 1-based page inside a PDF Content. Ignored for images.
	PageIndex int
}

// PageText is the OCR output for one page.
type PageText struct {
	// Tokens are word-level detections in engine order.
	Tokens []Token `json:"tokens"`

	// Paragraphs are block-level spans. Engines that cannot produce
	// word geometry may return paragraphs only.
	Paragraphs []Paragraph `json:"paragraphs,omitempty"`

	// Width and Height of the page in the coordinate space of the boxes.
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Token is a single detected text unit with its own box and confidence.
type Token struct {
	Text       string  `json:"text"`
	BBox       Quad    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// Paragraph is a block-level text span.
type Paragraph struct {
	Text       string  `json:"text"`
	BBox       *Quad   `json:"bbox,omitempty"`
	Confidence float64 `json:"confidence"`
}
