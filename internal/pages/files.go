package pages

import (
	"context"
	"os"
)

// FileSource serves page images from local files, one file per page.
type FileSource struct {
	paths []string
}

// NewFileSource creates a source over the given image paths in page order.
func NewFileSource(paths []string) (*FileSource, error) {
	if len(paths) == 0 {
		return nil, ErrNoPages
	}
	return &FileSource{paths: append([]string(nil), paths...)}, nil
}

// Count implements Source.
func (s *FileSource) Count() int { return len(s.paths) }

// Ref implements Source.
func (s *FileSource) Ref(n int) Ref {
	if checkRange(n, len(s.paths)) != nil {
		return ""
	}
	return Ref(s.paths[n-1])
}

// Page implements Source.
func (s *FileSource) Page(ctx context.Context, n int) (Page, error) {
	if err := checkRange(n, len(s.paths)); err != nil {
		return Page{}, err
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	path := s.paths[n-1]
	content, err := os.ReadFile(path)
	if err != nil {
		return Page{}, &FetchError{Page: n, Ref: Ref(path), Err: err}
	}
	return Page{
		Number:   n,
		Ref:      Ref(path),
		Content:  content,
		MimeType: mimeTypeFor(path),
	}, nil
}
