package mocks

import (
	"context"

	"github.com/phrazzld/asrq/internal/recognition"
)

// MockRecognizer implements recognition.Recognizer and
// recognition.ReadinessChecker for testing.
type MockRecognizer struct {
	RecognizeFn func(ctx context.Context, path string) (string, error)
	ReadyFn     func(ctx context.Context) error

	// Default values used when functions aren't explicitly defined
	Text string
	Err  error
}

var (
	_ recognition.Recognizer       = (*MockRecognizer)(nil)
	_ recognition.ReadinessChecker = (*MockRecognizer)(nil)
)

// Recognize implements recognition.Recognizer.
func (m *MockRecognizer) Recognize(ctx context.Context, path string) (string, error) {
	if m.RecognizeFn != nil {
		return m.RecognizeFn(ctx, path)
	}
	return m.Text, m.Err
}

// Ready implements recognition.ReadinessChecker.
func (m *MockRecognizer) Ready(ctx context.Context) error {
	if m.ReadyFn != nil {
		return m.ReadyFn(ctx)
	}
	return nil
}
