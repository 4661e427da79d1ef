package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/fetch"
)

// MockFetcher implements fetch.Fetcher for testing.
type MockFetcher struct {
	FetchFn func(ctx context.Context, rawURL string, jobID uuid.UUID) (string, error)

	// Default values used when FetchFn isn't set
	Path string
	Err  error
}

var _ fetch.Fetcher = (*MockFetcher)(nil)

// Fetch implements fetch.Fetcher.
func (m *MockFetcher) Fetch(ctx context.Context, rawURL string, jobID uuid.UUID) (string, error) {
	if m.FetchFn != nil {
		return m.FetchFn(ctx, rawURL, jobID)
	}
	return m.Path, m.Err
}
