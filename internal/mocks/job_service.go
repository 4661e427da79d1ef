package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/service"
)

// MockJobService implements service.JobService for testing.
type MockJobService struct {
	SubmitJobFn func(ctx context.Context, source string) (*domain.Job, error)
	GetJobFn    func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	StatsFn     func(ctx context.Context) (*service.Stats, error)
}

var _ service.JobService = (*MockJobService)(nil)

// SubmitJob implements service.JobService. Without SubmitJobFn it returns a
// fresh pending job for source.
func (m *MockJobService) SubmitJob(ctx context.Context, source string) (*domain.Job, error) {
	if m.SubmitJobFn != nil {
		return m.SubmitJobFn(ctx, source)
	}
	return domain.NewJob(source, source)
}

// GetJob implements service.JobService. Without GetJobFn it returns
// service.ErrJobNotFound.
func (m *MockJobService) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if m.GetJobFn != nil {
		return m.GetJobFn(ctx, id)
	}
	return nil, service.ErrJobNotFound
}

// Stats implements service.JobService.
func (m *MockJobService) Stats(ctx context.Context) (*service.Stats, error) {
	if m.StatsFn != nil {
		return m.StatsFn(ctx)
	}
	return &service.Stats{Jobs: map[domain.JobStatus]int{}}, nil
}
