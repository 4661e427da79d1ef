package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/store"
)

// MockJobQueue implements store.JobQueue for testing.
type MockJobQueue struct {
	EnqueueFn func(ctx context.Context, id uuid.UUID) error
	DequeueFn func(ctx context.Context, timeout time.Duration) (uuid.UUID, error)
	LenFn     func(ctx context.Context) (int, error)

	mu       sync.Mutex
	enqueued []uuid.UUID
}

var _ store.JobQueue = (*MockJobQueue)(nil)

// Enqueue implements store.JobQueue.
func (m *MockJobQueue) Enqueue(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	m.enqueued = append(m.enqueued, id)
	m.mu.Unlock()

	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, id)
	}
	return nil
}

// Dequeue implements store.JobQueue. Without DequeueFn it behaves like an
// empty queue: it waits for timeout or ctx and returns store.ErrQueueEmpty.
func (m *MockJobQueue) Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, error) {
	if m.DequeueFn != nil {
		return m.DequeueFn(ctx, timeout)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	case <-timer.C:
		return uuid.Nil, store.ErrQueueEmpty
	}
}

// Len implements store.JobQueue.
func (m *MockJobQueue) Len(ctx context.Context) (int, error) {
	if m.LenFn != nil {
		return m.LenFn(ctx)
	}
	return 0, nil
}

// Enqueued returns the IDs passed to Enqueue, in call order.
func (m *MockJobQueue) Enqueued() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.enqueued...)
}
