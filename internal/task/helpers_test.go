package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/platform/memory"
	"github.com/phrazzld/asrq/internal/store"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// funcTask is a Task backed by a function.
type funcTask struct {
	id uuid.UUID
	fn func(ctx context.Context) error
}

func newFuncTask(fn func(ctx context.Context) error) *funcTask {
	return &funcTask{id: uuid.New(), fn: fn}
}

func (t *funcTask) ID() uuid.UUID                     { return t.id }
func (t *funcTask) Type() string                      { return "test" }
func (t *funcTask) Execute(ctx context.Context) error { return t.fn(ctx) }

// createJob stores a pending job for path and returns it.
func createJob(t *testing.T, jobs *memory.JobStore, path string) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(path, path)
	require.NoError(t, err)
	require.NoError(t, jobs.Create(context.Background(), job))
	return job
}

func jobStatus(t *testing.T, jobs *memory.JobStore, id uuid.UUID) domain.JobStatus {
	t.Helper()
	job, err := jobs.GetByID(context.Background(), id)
	require.NoError(t, err)
	return job.Status
}

// flakyJobStore fails the next getFailures lookups and updateFailures
// status writes with a transient error, then delegates to the wrapped store.
// failAllGets makes every lookup fail.
type flakyJobStore struct {
	store.JobStore
	failAllGets    bool
	getFailures    atomic.Int32
	updateFailures atomic.Int32
	gets           atomic.Int32
	updates        atomic.Int32
}

func transientError(op string) error {
	return store.NewTransientError("job", op, errors.New("connection reset by peer"))
}

// take decrements n when it is positive and reports whether it did.
func take(n *atomic.Int32) bool {
	for {
		v := n.Load()
		if v <= 0 {
			return false
		}
		if n.CompareAndSwap(v, v-1) {
			return true
		}
	}
}

func (f *flakyJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	f.gets.Add(1)
	if f.failAllGets || take(&f.getFailures) {
		return nil, transientError("get")
	}
	return f.JobStore.GetByID(ctx, id)
}

func (f *flakyJobStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, result *string) error {
	f.updates.Add(1)
	if take(&f.updateFailures) {
		return transientError("update_status")
	}
	return f.JobStore.UpdateStatus(ctx, id, status, result)
}
