package storage

import (
	"fmt"

	"callouts/internal/ocr"
)

// ImageKey is the object key of a page image.
func ImageKey(projectID, fileID string, page int, mimeType string) string {
	ext := "jpg"
	if mimeType == ocr.MimeTypePNG {
		ext = "png"
	}
	return fmt.Sprintf("projects/%s/files/%s/images/page-%03d.%s", projectID, fileID, page, ext)
}

// PageJSONKey is the object key of a page's extraction results.
func PageJSONKey(projectID, fileID string, page int) string {
	return fmt.Sprintf("projects/%s/files/%s/json/page-%03d.json", projectID, fileID, page)
}

// FinalJSONKey is the object key of the final document.
func FinalJSONKey(projectID, fileID string) string {
	return fmt.Sprintf("projects/%s/files/%s/json/final-results.json", projectID, fileID)
}
