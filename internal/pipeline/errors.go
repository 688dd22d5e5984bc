package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest matches every *ValidationError.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrPageFailed matches every *PageProcessingError.
	ErrPageFailed = errors.New("page processing failed")

	// ErrChunkFailed matches every *ChunkFatalError.
	ErrChunkFailed = errors.New("chunk processing failed")

	// ErrPipelineFailed matches every *PipelineFatalError.
	ErrPipelineFailed = errors.New("pipeline failed")
)

// ValidationError reports a malformed request. No work is started.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s=%v: %s", e.Field, e.Value, e.Message)
}

// Is matches ErrInvalidRequest.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// PageProcessingError is recorded for a page that failed every attempt.
type PageProcessingError struct {
	Page     int
	Attempts int
	Err      error
}

func (e *PageProcessingError) Error() string {
	return fmt.Sprintf("page %d failed after %d attempt(s): %v", e.Page, e.Attempts, e.Err)
}

func (e *PageProcessingError) Unwrap() error { return e.Err }

// Is matches ErrPageFailed.
func (e *PageProcessingError) Is(target error) bool {
	return target == ErrPageFailed
}

// ChunkFatalError is recorded for every page of a chunk that failed outside
// the per-page retry loop.
type ChunkFatalError struct {
	Chunk int
	Pages []int
	Err   error
}

func (e *ChunkFatalError) Error() string {
	return fmt.Sprintf("chunk %d (pages %v) failed: %v", e.Chunk, e.Pages, e.Err)
}

func (e *ChunkFatalError) Unwrap() error { return e.Err }

// Is matches ErrChunkFailed.
func (e *ChunkFatalError) Is(target error) bool {
	return target == ErrChunkFailed
}

// PipelineFatalError is an unrecoverable job failure.
type PipelineFatalError struct {
	Op      string
	Err     error
	Details string
}

func (e *PipelineFatalError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("pipeline: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("pipeline: %s failed: %v", e.Op, e.Err)
}

func (e *PipelineFatalError) Unwrap() error { return e.Err }

// Is matches ErrPipelineFailed.
func (e *PipelineFatalError) Is(target error) bool {
	return target == ErrPipelineFailed
}

// WrapPipelineError wraps err unless it is already a pipeline or validation error.
func WrapPipelineError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var fatal *PipelineFatalError
	var invalid *ValidationError
	if errors.As(err, &fatal) || errors.As(err, &invalid) {
		return err
	}
	return &PipelineFatalError{Op: op, Err: err, Details: details}
}
