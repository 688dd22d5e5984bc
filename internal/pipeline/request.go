package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"callouts/internal/pages"
	"callouts/pkg/models"
)

// DefaultProjectID is used when a request carries no project.
const DefaultProjectID = "default"

// NormalizeRequest validates req and fills in defaults and identifiers.
func NormalizeRequest(req models.ProcessRequest) (models.ProcessRequest, error) {
	req.PDFURL = strings.TrimSpace(req.PDFURL)

	switch {
	case req.PDFURL == "" && len(req.Images) == 0:
		return req, &ValidationError{Field: "pdfUrl", Value: "", Message: "pdfUrl or images is required"}
	case req.PDFURL != "" && len(req.Images) > 0:
		return req, &ValidationError{Field: "images", Value: len(req.Images), Message: "pdfUrl and images are mutually exclusive"}
	}
	if req.PDFURL != "" && !isHTTPURL(req.PDFURL) {
		return req, &ValidationError{Field: "pdfUrl", Value: req.PDFURL, Message: "must be an http(s) URL"}
	}
	for i, img := range req.Images {
		if strings.TrimSpace(img) == "" {
			return req, &ValidationError{Field: fmt.Sprintf("images[%d]", i), Value: img, Message: "must not be empty"}
		}
	}

	if req.ChunkSize == 0 {
		req.ChunkSize = DefaultChunkSize
	}
	if req.ChunkSize < MinChunkSize || req.ChunkSize > MaxChunkSize {
		return req, &ValidationError{Field: "chunkSize", Value: req.ChunkSize, Message: "must be between 1 and 15"}
	}

	if req.ParallelWorkers == 0 {
		req.ParallelWorkers = DefaultWorkers
	}
	if req.ParallelWorkers < 1 || req.ParallelWorkers > MaxWorkers {
		return req, &ValidationError{Field: "parallelWorkers", Value: req.ParallelWorkers, Message: fmt.Sprintf("must be between 1 and %d", MaxWorkers)}
	}

	if req.Webhook != "" && !isHTTPURL(req.Webhook) {
		return req, &ValidationError{Field: "webhook", Value: req.Webhook, Message: "must be an http(s) URL"}
	}

	if req.ProjectID == "" {
		req.ProjectID = DefaultProjectID
	}
	if req.FileID == "" {
		req.FileID = NewFileID()
	}
	return req, nil
}

// NewFileID returns an identifier of the form file-xxxxxxxx.
func NewFileID() string {
	return "file-" + uuid.NewString()[:8]
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// RequireRemoteImages rejects image entries that are not http(s) URLs.
// Requests arriving over HTTP or the queue must not name local files.
func RequireRemoteImages(req models.ProcessRequest) error {
	for i, img := range req.Images {
		if !isHTTPURL(strings.TrimSpace(img)) {
			return &ValidationError{Field: fmt.Sprintf("images[%d]", i), Value: img, Message: "must be an http(s) URL"}
		}
	}
	return nil
}

// SourceOpener resolves a normalized request into a page source.
type SourceOpener func(ctx context.Context, req models.ProcessRequest) (pages.Source, error)

// HTTPSourceOpener opens PDF URLs and image URLs over HTTP. Any image entry
// that is not an http(s) URL is a validation error.
func HTTPSourceOpener(client *http.Client) SourceOpener {
	return func(ctx context.Context, req models.ProcessRequest) (pages.Source, error) {
		if req.PDFURL != "" {
			return pages.OpenPDFURL(ctx, client, req.PDFURL)
		}
		if err := RequireRemoteImages(req); err != nil {
			return nil, err
		}
		return pages.NewURLSource(req.Images, client)
	}
}

// LocalSourceOpener is HTTPSourceOpener that also reads image entries from
// the local filesystem. Only the command line uses it.
func LocalSourceOpener(client *http.Client) SourceOpener {
	remoteOnly := HTTPSourceOpener(client)
	return func(ctx context.Context, req models.ProcessRequest) (pages.Source, error) {
		if req.PDFURL != "" {
			return remoteOnly(ctx, req)
		}
		remote := 0
		for _, img := range req.Images {
			if isHTTPURL(img) {
				remote++
			}
		}
		switch remote {
		case len(req.Images):
			return remoteOnly(ctx, req)
		case 0:
			return pages.NewFileSource(req.Images)
		default:
			return nil, &ValidationError{Field: "images", Value: len(req.Images), Message: "cannot mix URLs and local paths"}
		}
	}
}
