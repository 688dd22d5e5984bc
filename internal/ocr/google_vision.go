package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

const (
	// MaxContentBytes is the maximum inline payload for synchronous processing (20MB)
	MaxContentBytes = 20 * 1024 * 1024

	// EngineVision names the Google Cloud Vision engine.
	EngineVision = "vision"
)

// GoogleVisionService implements Service using Google Cloud Vision API.
type GoogleVisionService struct {
	client  *vision.ImageAnnotatorClient
	timeout time.Duration
}

// NewGoogleVisionService creates a Vision-backed OCR service with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env,
// and falls back to Application Default Credentials.
func NewGoogleVisionService(ctx context.Context, timeout time.Duration) (*GoogleVisionService, error) {
	const op = "NewGoogleVisionService"

	opts := credentialOptions()
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return NewGoogleVisionServiceWithClient(client, timeout), nil
}

// NewGoogleVisionServiceWithClient creates a Vision-backed OCR service with an explicit client.
func NewGoogleVisionServiceWithClient(client *vision.ImageAnnotatorClient, timeout time.Duration) *GoogleVisionService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GoogleVisionService{
		client:  client,
		timeout: timeout,
	}
}

// Name implements Service.
func (g *GoogleVisionService) Name() string { return EngineVision }

// DetectText runs DOCUMENT_TEXT_DETECTION on one page.
// Images are sent inline; PDF inputs are sent as a file request limited to in.PageIndex.
func (g *GoogleVisionService) DetectText(ctx context.Context, in Input) (*PageText, error) {
	const op = "DetectText"

	if err := validateInput(op, in); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var (
		resp *visionpb.AnnotateImageResponse
		err  error
	)
	if in.MimeType == MimeTypePDF {
		resp, err = g.annotateFilePage(callCtx, in)
	} else {
		resp, err = g.annotateImage(callCtx, in)
	}
	if err != nil {
		return nil, err
	}

	if resp.Error != nil && resp.Error.Message != "" {
		return nil, NewOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", resp.Error.Message))
	}

	return pageTextFromVision(resp), nil
}

func (g *GoogleVisionService) annotateImage(ctx context.Context, in Input) (*visionpb.AnnotateImageResponse, error) {
	const op = "annotateImage"

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: in.Content},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, NewOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, NewOCRError(op, ErrOCRFailed, "no response from Vision API")
	}
	return resp.Responses[0], nil
}

func (g *GoogleVisionService) annotateFilePage(ctx context.Context, in Input) (*visionpb.AnnotateImageResponse, error) {
	const op = "annotateFilePage"

	if in.PageIndex < 1 {
		return nil, NewOCRError(op, ErrInvalidConfiguration, fmt.Sprintf("invalid PDF page index %d", in.PageIndex))
	}

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  in.Content,
					MimeType: MimeTypePDF,
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				Pages: []int32{int32(in.PageIndex)},
			},
		},
	}

	resp, err := g.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, NewOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, NewOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil && fileResp.Error.Message != "" {
		return nil, NewOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}
	if len(fileResp.Responses) == 0 {
		return nil, NewOCRError(op, ErrOCRFailed, fmt.Sprintf("no annotation for page %d", in.PageIndex))
	}
	return fileResp.Responses[0], nil
}

// Close closes the underlying Vision client.
func (g *GoogleVisionService) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// pageTextFromVision flattens a Vision annotation into tokens and paragraphs.
// Words become tokens; paragraphs keep their own box. Without a full text
// annotation the individual text annotations are used, skipping the first
// one which holds the whole page text.
func pageTextFromVision(resp *visionpb.AnnotateImageResponse) *PageText {
	out := &PageText{}
	if resp == nil {
		return out
	}

	full := resp.FullTextAnnotation
	if full == nil || len(full.Pages) == 0 {
		if len(resp.TextAnnotations) > 1 {
			for _, ann := range resp.TextAnnotations[1:] {
				text := strings.TrimSpace(ann.Description)
				if text == "" {
					continue
				}
				out.Tokens = append(out.Tokens, Token{
					Text:       text,
					BBox:       quadFromPoly(ann.BoundingPoly, 0, 0),
					Confidence: float64(ann.Confidence),
				})
			}
		}
		return out
	}

	for _, page := range full.Pages {
		width, height := float64(page.Width), float64(page.Height)
		if width > out.Width {
			out.Width = width
		}
		if height > out.Height {
			out.Height = height
		}

		for _, block := range page.Blocks {
			for _, para := range block.Paragraphs {
				var text strings.Builder
				for _, word := range para.Words {
					wordText := symbolsText(word.Symbols)
					if wordText == "" {
						continue
					}
					out.Tokens = append(out.Tokens, Token{
						Text:       wordText,
						BBox:       quadFromPoly(word.BoundingBox, width, height),
						Confidence: float64(word.Confidence),
					})
					text.WriteString(wordText)
					if endsWithBreak(word.Symbols) {
						text.WriteString(" ")
					}
				}

				paraText := strings.TrimSpace(text.String())
				if paraText == "" {
					continue
				}
				p := Paragraph{
					Text:       paraText,
					Confidence: float64(para.Confidence),
				}
				if para.BoundingBox != nil {
					q := quadFromPoly(para.BoundingBox, width, height)
					p.BBox = &q
				}
				out.Paragraphs = append(out.Paragraphs, p)
			}
		}
	}

	return out
}

func symbolsText(symbols []*visionpb.Symbol) string {
	var b strings.Builder
	for _, s := range symbols {
		b.WriteString(s.Text)
	}
	return b.String()
}

// endsWithBreak reports whether the last symbol of a word is followed by
// whitespace. Words without break information are assumed to be separated.
func endsWithBreak(symbols []*visionpb.Symbol) bool {
	if len(symbols) == 0 {
		return false
	}
	last := symbols[len(symbols)-1]
	if last.Property == nil || last.Property.DetectedBreak == nil {
		return true
	}
	switch last.Property.DetectedBreak.Type {
	case visionpb.TextAnnotation_DetectedBreak_SPACE,
		visionpb.TextAnnotation_DetectedBreak_SURE_SPACE,
		visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
		visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
		return true
	}
	return false
}

// quadFromPoly converts a Vision bounding poly. Normalized vertices (used for
// file annotations) are scaled by the page size.
func quadFromPoly(poly *visionpb.BoundingPoly, width, height float64) Quad {
	var q Quad
	if poly == nil {
		return q
	}
	if len(poly.Vertices) > 0 {
		for i := 0; i < 4 && i < len(poly.Vertices); i++ {
			q[i] = Vertex{X: float64(poly.Vertices[i].X), Y: float64(poly.Vertices[i].Y)}
		}
		return q
	}
	for i := 0; i < 4 && i < len(poly.NormalizedVertices); i++ {
		nv := poly.NormalizedVertices[i]
		q[i] = Vertex{X: float64(nv.X) * width, Y: float64(nv.Y) * height}
	}
	return q
}

// credentialOptions builds client options from the environment.
// An empty result means Application Default Credentials will be tried.
func credentialOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}
