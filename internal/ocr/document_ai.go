package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
)

// EngineDocumentAI names the Document AI OCR engine.
const EngineDocumentAI = "documentai"

// DocumentAIConfig holds the processor coordinates for DocumentAIService.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
	Timeout     time.Duration
}

// DocumentAIService implements Service using a Document AI OCR processor.
type DocumentAIService struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
}

// NewDocumentAIService creates a Document AI client for the configured region.
// Credentials follow the same environment rules as NewGoogleVisionService.
func NewDocumentAIService(ctx context.Context, config DocumentAIConfig) (*DocumentAIService, error) {
	const op = "NewDocumentAIService"

	if config.ProjectID == "" {
		return nil, NewOCRError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, NewOCRError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	var clientOptions []option.ClientOption
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}
	creds := credentialOptions()
	clientOptions = append(clientOptions, creds...)

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(creds) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return NewDocumentAIServiceWithClient(config, client), nil
}

// NewDocumentAIServiceWithClient creates the service with an explicit client.
func NewDocumentAIServiceWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIService {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &DocumentAIService{client: client, config: config}
}

// Name implements Service.
func (d *DocumentAIService) Name() string { return EngineDocumentAI }

// DetectText sends one page to the processor. PDF inputs are restricted to
// in.PageIndex with an individual page selector.
func (d *DocumentAIService) DetectText(ctx context.Context, in Input) (*PageText, error) {
	const op = "DetectText"

	if err := validateInput(op, in); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: d.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  in.Content,
				MimeType: in.MimeType,
			},
		},
	}
	if in.MimeType == MimeTypePDF {
		if in.PageIndex < 1 {
			return nil, NewOCRError(op, ErrInvalidConfiguration, fmt.Sprintf("invalid PDF page index %d", in.PageIndex))
		}
		req.ProcessOptions = &documentaipb.ProcessOptions{
			PageRange: &documentaipb.ProcessOptions_IndividualPageSelector_{
				IndividualPageSelector: &documentaipb.ProcessOptions_IndividualPageSelector{
					Pages: []int32{int32(in.PageIndex)},
				},
			},
		}
	}

	resp, err := d.client.ProcessDocument(callCtx, req)
	if err != nil {
		return nil, NewOCRError(op, ErrOCRFailed, fmt.Sprintf("Document AI call failed: %v", err))
	}
	if resp.Document == nil {
		return nil, NewOCRError(op, ErrOCRFailed, "empty document in response")
	}

	return pageTextFromDocument(resp.Document), nil
}

// Close closes the underlying Document AI client.
func (d *DocumentAIService) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

func (d *DocumentAIService) processorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		d.config.ProjectID, d.config.Location, d.config.ProcessorID)
}

// pageTextFromDocument maps page tokens and paragraphs onto the shared model.
// Layout text is resolved through the anchors into doc.Text.
func pageTextFromDocument(doc *documentaipb.Document) *PageText {
	out := &PageText{}
	for _, page := range doc.Pages {
		var width, height float64
		if page.Dimension != nil {
			width, height = float64(page.Dimension.Width), float64(page.Dimension.Height)
		}
		if width > out.Width {
			out.Width = width
		}
		if height > out.Height {
			out.Height = height
		}

		for _, tok := range page.Tokens {
			if tok.Layout == nil {
				continue
			}
			text := strings.TrimSpace(anchorText(doc.Text, tok.Layout.TextAnchor))
			if text == "" {
				continue
			}
			out.Tokens = append(out.Tokens, Token{
				Text:       text,
				BBox:       quadFromDocPoly(tok.Layout.BoundingPoly, width, height),
				Confidence: float64(tok.Layout.Confidence),
			})
		}

		for _, para := range page.Paragraphs {
			if para.Layout == nil {
				continue
			}
			text := strings.Join(strings.Fields(anchorText(doc.Text, para.Layout.TextAnchor)), " ")
			if text == "" {
				continue
			}
			p := Paragraph{Text: text, Confidence: float64(para.Layout.Confidence)}
			if para.Layout.BoundingPoly != nil {
				q := quadFromDocPoly(para.Layout.BoundingPoly, width, height)
				p.BBox = &q
			}
			out.Paragraphs = append(out.Paragraphs, p)
		}
	}
	return out
}

func anchorText(text string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 || end > len(text) || start >= end {
			continue
		}
		b.WriteString(text[start:end])
	}
	return b.String()
}

func quadFromDocPoly(poly *documentaipb.BoundingPoly, width, height float64) Quad {
	var q Quad
	if poly == nil {
		return q
	}
	if len(poly.NormalizedVertices) > 0 {
		for i := 0; i < 4 && i < len(poly.NormalizedVertices); i++ {
			nv := poly.NormalizedVertices[i]
			q[i] = Vertex{X: float64(nv.X) * width, Y: float64(nv.Y) * height}
		}
		return q
	}
	for i := 0; i < 4 && i < len(poly.Vertices); i++ {
		q[i] = Vertex{X: float64(poly.Vertices[i].X), Y: float64(poly.Vertices[i].Y)}
	}
	return q
}
