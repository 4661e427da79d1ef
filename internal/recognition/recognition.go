// Package recognition defines the speech recognition capability used by the
// worker pool and provides the local implementations: an external command
// (a whisper-style CLI) and a static stub.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error definitions for the recognition package.
var (
	// ErrRecognitionFailed is the sentinel every recognizer failure wraps.
	ErrRecognitionFailed = errors.New("recognition failed")

	// ErrEmptyTranscript is returned when a backend succeeds but produces no text.
	ErrEmptyTranscript = fmt.Errorf("%w: empty transcript", ErrRecognitionFailed)

	// ErrNotReady is returned by Ready when a backend cannot serve requests yet,
	// e.g. because its model or binary is missing.
	ErrNotReady = errors.New("recognizer not ready")
)

// Recognizer turns the audio file at path into a transcript.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// ReadinessChecker is implemented by recognizers that can verify their
// prerequisites before the first job arrives.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// RecognitionError records which backend failed on which file.
type RecognitionError struct {
	Backend string
	Path    string
	Err     error
}

// Error implements the error interface for RecognitionError.
func (e *RecognitionError) Error() string {
	return fmt.Sprintf("%s recognition of %s failed: %v", e.Backend, e.Path, e.Err)
}

// Unwrap exposes both the cause and ErrRecognitionFailed to errors.Is.
func (e *RecognitionError) Unwrap() []error {
	return []error{ErrRecognitionFailed, e.Err}
}

// NewRecognitionError wraps err for backend and path.
func NewRecognitionError(backend, path string, err error) *RecognitionError {
	return &RecognitionError{Backend: backend, Path: path, Err: err}
}

// CheckReady calls r.Ready when r implements ReadinessChecker and returns nil otherwise.
func CheckReady(ctx context.Context, r Recognizer) error {
	if rc, ok := r.(ReadinessChecker); ok {
		return rc.Ready(ctx)
	}
	return nil
}

// NormalizeTranscript trims surrounding whitespace and rejects empty output.
func NormalizeTranscript(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
