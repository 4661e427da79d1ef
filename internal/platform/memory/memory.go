// Package memory provides process-local implementations of the job store and
// job queue. Nothing survives a restart; they serve development, the
// single-process "all" mode and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/store"
)

// JobStore is a mutex-guarded map of jobs keyed by ID.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]domain.Job
	now  func() time.Time
}

// NewJobStore returns an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[uuid.UUID]domain.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

var _ store.JobStore = (*JobStore)(nil)

// Create implements store.JobStore.Create
func (s *JobStore) Create(_ context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("%w: job %s", store.ErrDuplicate, job.ID)
	}
	s.jobs[job.ID] = copyJob(*job)
	return nil
}

// UpdateStatus implements store.JobStore.UpdateStatus
func (s *JobStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.JobStatus, result *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}

	if err := job.Transition(status, result); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return fmt.Errorf("%w: %w", store.ErrInvalidTransition, err)
		}
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	job.UpdatedAt = s.now()
	s.jobs[id] = copyJob(job)
	return nil
}

// GetByID implements store.JobStore.GetByID
func (s *JobStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	out := copyJob(job)
	return &out, nil
}

// FindByStatus implements store.JobStore.FindByStatus
func (s *JobStore) FindByStatus(
	_ context.Context,
	status domain.JobStatus,
	olderThan time.Duration,
	limit int,
) ([]*domain.Job, error) {
	cutoff := s.now().Add(-olderThan)

	s.mu.RLock()
	var jobs []*domain.Job
	for _, job := range s.jobs {
		if job.Status == status && !job.UpdatedAt.After(cutoff) {
			j := copyJob(job)
			jobs = append(jobs, &j)
		}
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].UpdatedAt.Before(jobs[j].UpdatedAt)
	})
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// CountByStatus implements store.JobStore.CountByStatus
func (s *JobStore) CountByStatus(_ context.Context) (map[domain.JobStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.JobStatus]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func copyJob(job domain.Job) domain.Job {
	if job.Result != nil {
		r := *job.Result
		job.Result = &r
	}
	return job
}

// JobQueue is a mutex-guarded FIFO slice with a wake signal for blocked
// consumers.
type JobQueue struct {
	mu     sync.Mutex
	items  []uuid.UUID
	signal *store.Signal
}

// NewJobQueue returns an empty JobQueue.
func NewJobQueue() *JobQueue {
	return &JobQueue{signal: store.NewSignal()}
}

var _ store.JobQueue = (*JobQueue)(nil)

// Enqueue implements store.JobQueue.Enqueue
func (q *JobQueue) Enqueue(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()

	q.signal.Notify()
	return nil
}

// Dequeue implements store.JobQueue.Dequeue
func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, error) {
	return store.PollUntil(ctx, timeout, 0, q.signal, q.take)
}

func (q *JobQueue) take(context.Context) (uuid.UUID, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return uuid.Nil, false, nil
	}
	id := q.items[0]
	q.items[0] = uuid.Nil
	q.items = q.items[1:]
	return id, true, nil
}

// Len implements store.JobQueue.Len
func (q *JobQueue) Len(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}
