package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/store"
)

// StatusUpdate records one call to MockJobStore.UpdateStatus.
type StatusUpdate struct {
	ID     uuid.UUID
	Status domain.JobStatus
	Result *string
}

// MockJobStore implements store.JobStore for testing.
type MockJobStore struct {
	CreateFn        func(ctx context.Context, job *domain.Job) error
	UpdateStatusFn  func(ctx context.Context, id uuid.UUID, status domain.JobStatus, result *string) error
	GetByIDFn       func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	FindByStatusFn  func(ctx context.Context, status domain.JobStatus, olderThan time.Duration, limit int) ([]*domain.Job, error)
	CountByStatusFn func(ctx context.Context) (map[domain.JobStatus]int, error)

	mu      sync.Mutex
	created []*domain.Job
	updates []StatusUpdate
}

var _ store.JobStore = (*MockJobStore)(nil)

// Create implements store.JobStore.
func (m *MockJobStore) Create(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	m.created = append(m.created, job)
	m.mu.Unlock()

	if m.CreateFn != nil {
		return m.CreateFn(ctx, job)
	}
	return nil
}

// UpdateStatus implements store.JobStore.
func (m *MockJobStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, result *string) error {
	m.mu.Lock()
	m.updates = append(m.updates, StatusUpdate{ID: id, Status: status, Result: result})
	m.mu.Unlock()

	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, status, result)
	}
	return nil
}

// GetByID implements store.JobStore. Without GetByIDFn it returns
// store.ErrJobNotFound.
func (m *MockJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, store.ErrJobNotFound
}

// FindByStatus implements store.JobStore.
func (m *MockJobStore) FindByStatus(
	ctx context.Context,
	status domain.JobStatus,
	olderThan time.Duration,
	limit int,
) ([]*domain.Job, error) {
	if m.FindByStatusFn != nil {
		return m.FindByStatusFn(ctx, status, olderThan, limit)
	}
	return nil, nil
}

// CountByStatus implements store.JobStore.
func (m *MockJobStore) CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error) {
	if m.CountByStatusFn != nil {
		return m.CountByStatusFn(ctx)
	}
	return map[domain.JobStatus]int{}, nil
}

// Created returns the jobs passed to Create, in call order.
func (m *MockJobStore) Created() []*domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Job(nil), m.created...)
}

// Updates returns the UpdateStatus calls, in call order.
func (m *MockJobStore) Updates() []StatusUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StatusUpdate(nil), m.updates...)
}
