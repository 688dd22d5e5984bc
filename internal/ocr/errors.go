package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrEmptyImage is returned when an Input carries no content.
	ErrEmptyImage = errors.New("page image is empty")

	// ErrImageTooLarge is returned when a page exceeds the engine's request size limit.
	// Google Cloud Vision API accepts at most 20MB of inline content.
	ErrImageTooLarge = errors.New("page image exceeds the maximum size limit (20MB)")

	// ErrUnsupportedFormat is returned when an engine cannot read the Input's MIME type.
	ErrUnsupportedFormat = errors.New("unsupported page format")

	// ErrOCRFailed is returned when the OCR backend fails to process the page.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrInvalidConfiguration is returned when an engine is missing required settings.
	ErrInvalidConfiguration = errors.New("invalid OCR configuration")

	// ErrUnknownEngine is returned for an unrecognised OCR_ENGINE value.
	ErrUnknownEngine = errors.New("unknown OCR engine")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "DetectText", "LoadCredentials").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, err, details)
}

// validateInput applies the checks every engine shares.
func validateInput(op string, in Input) error {
	if len(in.Content) == 0 {
		return NewOCRError(op, ErrEmptyImage, "")
	}
	if len(in.Content) > MaxContentBytes {
		return NewOCRError(op, ErrImageTooLarge, fmt.Sprintf("content size: %d bytes", len(in.Content)))
	}
	return nil
}
