package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/asrq/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// These errors represent conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in JobServiceError
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrInputValidation indicates the submitted source cannot be used: it is
	// empty, or names a local file that does not exist or is a directory.
	// API layer should map this to HTTP 400 Bad Request.
	ErrInputValidation = errors.New("invalid input")

	// ErrFetch indicates a remote source could not be downloaded.
	// API layer should map this to HTTP 400 Bad Request.
	ErrFetch = errors.New("failed to download file")

	// ErrJobNotFound indicates that the job does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrJobNotFound = errors.New("job not found")
)

// JobServiceError wraps errors from the job service with context.
type JobServiceError struct {
	// Operation is the operation that failed (e.g., "submit_job", "get_job")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for JobServiceError.
func (e *JobServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("job service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("job service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *JobServiceError) Unwrap() error {
	return e.Err
}

// NewJobServiceError creates a new JobServiceError.
// Store-level not-found errors are translated to ErrJobNotFound and returned
// directly without wrapping.
func NewJobServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrJobNotFound) || errors.Is(err, store.ErrJobNotFound) {
		return ErrJobNotFound
	}

	return &JobServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// inputError builds an ErrInputValidation error with a client-facing reason.
func inputError(operation, reason string) error {
	return &JobServiceError{
		Operation: operation,
		Message:   reason,
		Err:       ErrInputValidation,
	}
}
