// Package tesseract provides an offline ocr.Service backed by a local
// Tesseract installation. It needs cgo and libtesseract at build time, which
// is why it lives outside package ocr.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"callouts/internal/ocr"
)

// EngineName names the Tesseract engine.
const EngineName = "tesseract"

// Engine implements ocr.Service with gosseract. A fresh client is created per
// call, so one Engine can be shared by all dispatcher workers.
type Engine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract engine. With no languages Tesseract's default
// (eng) is used.
func New(languages ...string) *Engine {
	return &Engine{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

// Name implements ocr.Service.
func (e *Engine) Name() string { return EngineName }

// DetectText implements ocr.Service. Word boxes become tokens, text lines
// become paragraphs. PDF input is not supported; pages must be rasterized.
func (e *Engine) DetectText(ctx context.Context, in ocr.Input) (*ocr.PageText, error) {
	const op = "tesseract.DetectText"

	if len(in.Content) == 0 {
		return nil, ocr.NewOCRError(op, ocr.ErrEmptyImage, "")
	}
	if in.MimeType == ocr.MimeTypePDF {
		return nil, ocr.NewOCRError(op, ocr.ErrUnsupportedFormat, "tesseract needs a rasterized page")
	}
	if err := ctx.Err(); err != nil {
		return nil, ocr.WrapOCRError(op, err, "")
	}

	prepared, scale, err := ocr.Preprocess(in.Content)
	if err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer c.Close()

	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, ocr.NewOCRError(op, ocr.ErrInvalidConfiguration, fmt.Sprintf("set languages: %v", err))
		}
	}
	if err := c.SetImageFromBytes(prepared); err != nil {
		return nil, ocr.NewOCRError(op, ocr.ErrOCRFailed, fmt.Sprintf("set image: %v", err))
	}

	words, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, ocr.NewOCRError(op, ocr.ErrOCRFailed, fmt.Sprintf("word boxes: %v", err))
	}
	lines, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, ocr.NewOCRError(op, ocr.ErrOCRFailed, fmt.Sprintf("line boxes: %v", err))
	}

	out := &ocr.PageText{}
	for _, b := range words {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		out.Tokens = append(out.Tokens, ocr.Token{
			Text:       text,
			BBox:       boxQuad(b, scale),
			Confidence: b.Confidence / 100.0,
		})
	}
	for _, b := range lines {
		text := strings.Join(strings.Fields(b.Word), " ")
		if text == "" {
			continue
		}
		q := boxQuad(b, scale)
		out.Paragraphs = append(out.Paragraphs, ocr.Paragraph{
			Text:       text,
			BBox:       &q,
			Confidence: b.Confidence / 100.0,
		})
	}
	return out, nil
}

func boxQuad(b gosseract.BoundingBox, scale float64) ocr.Quad {
	if scale <= 0 {
		scale = 1
	}
	return ocr.RectQuad(
		float64(b.Box.Min.X)/scale,
		float64(b.Box.Min.Y)/scale,
		float64(b.Box.Dx())/scale,
		float64(b.Box.Dy())/scale,
	)
}
