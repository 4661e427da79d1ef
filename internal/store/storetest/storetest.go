// Package storetest holds a behavioural test suite shared by every
// store.JobStore and store.JobQueue implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store and queue for one test.
type Factory func(t *testing.T) (store.JobStore, store.JobQueue)

func strPtr(s string) *string { return &s }

func newJob(t *testing.T, path string) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(path, path)
	require.NoError(t, err)
	return job
}

// RunJobStoreTests exercises the store.JobStore contract.
func RunJobStoreTests(t *testing.T, factory Factory) {
	t.Run("create and get", func(t *testing.T) {
		s, _ := factory(t)
		ctx := context.Background()
		job := newJob(t, "/data/a.wav")

		require.NoError(t, s.Create(ctx, job))

		got, err := s.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, "/data/a.wav", got.FilePath)
		assert.Equal(t, "/data/a.wav", got.Source)
		assert.Equal(t, domain.JobStatusPending, got.Status)
		assert.Nil(t, got.Result)
		assert.WithinDuration(t, job.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("get unknown id", func(t *testing.T) {
		s, _ := factory(t)
		got, err := s.GetByID(context.Background(), uuid.New())
		assert.ErrorIs(t, err, store.ErrJobNotFound)
		assert.Nil(t, got)
	})

	t.Run("create duplicate", func(t *testing.T) {
		s, _ := factory(t)
		ctx := context.Background()
		job := newJob(t, "a.wav")

		require.NoError(t, s.Create(ctx, job))
		assert.ErrorIs(t, s.Create(ctx, job), store.ErrDuplicate)
	})

	t.Run("create invalid", func(t *testing.T) {
		s, _ := factory(t)
		job := newJob(t, "a.wav")
		job.FilePath = ""
		assert.ErrorIs(t, s.Create(context.Background(), job), store.ErrInvalidEntity)
	})

	t.Run("status sequence", func(t *testing.T) {
		s, _ := factory(t)
		ctx := context.Background()
		job := newJob(t, "a.wav")
		require.NoError(t, s.Create(ctx, job))

		require.NoError(t, s.UpdateStatus(ctx, job.ID, domain.JobStatusProcessing, nil))
		got, err := s.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, got.Status)
		assert.Nil(t, got.Result)

		require.NoError(t, s.UpdateStatus(ctx, job.ID, domain.JobStatusCompleted, strPtr("hello world")))
		got, err = s.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, got.Status)
		require.NotNil(t, got.Result)
		assert.Equal(t, "hello world", *got.Result)
		assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	})

	t.Run("terminal states are final", func(t *testing.T) {
		s, _ := factory(t)
		ctx := context.Background()
		job := newJob(t, "a.wav")
		require.NoError(t, s.Create(ctx, job))
		require.NoError(t, s.UpdateStatus(ctx, job.ID, domain.JobStatusProcessing, nil))
		require.NoError(t, s.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, strPtr("decoder error")))

		err := s.UpdateStatus(ctx, job.ID, domain.JobStatusCompleted, strPtr("late"))
		assert.ErrorIs(t, err, store.ErrInvalidTransition)
		err = s.UpdateStatus(ctx, job.ID, domain.JobStatusProcessing, nil)
		assert.ErrorIs(t, err, store.ErrInvalidTransition)

		got, err := s.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, got.Status)
		assert.Equal(t, "decoder error", *got.Result)
	})

	t.Run("skipping processing is refused", func(t *testing.T) {
		s, _ := factory(t)
		ctx := context.Background()
		job := newJob(t, "a.wav")
		require.NoError(t, s.Create(ctx, job))

		err := s.UpdateStatus(ctx, job.ID, domain.JobStatusCompleted, strPtr("x"))
		assert.ErrorIs(t, err, store.ErrInvalidTransition)
		err = s.UpdateStatus(ctx, job.ID, domain.JobStatusPending, nil)
		assert.ErrorIs(t, err, store.ErrInvalidTransition)
	})

	t.Run("result must match status", func(t *testing.T) {
		s, _ := factory(t)
		ctx := context.Background()
		job := newJob(t, "a.wav")
		require.NoError(t, s.Create(ctx, job))

		err := s.UpdateStatus(ctx, job.ID, domain.JobStatusProcessing, strPtr("x"))
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
		require.NoError(t, s.UpdateStatus(ctx, job.ID, domain.JobStatusProcessing, nil))
		err = s.UpdateStatus(ctx, job.ID, domain.JobStatusCompleted, nil)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})

	t.Run("update unknown id", func(t *testing.T) {
		s, _ := factory(t)
		err := s.UpdateStatus(context.Background(), uuid.New(), domain.JobStatusProcessing, nil)
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})

	t.Run("concurrent claims apply once", func(t *testing.T) {
		s, _ := factory(t)
		ctx := context.Background()
		job := newJob(t, "a.wav")
		require.NoError(t, s.Create(ctx, job))

		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.UpdateStatus(ctx, job.ID, domain.JobStatusProcessing, nil)
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
					return
				}
				if !errors.Is(err, store.ErrInvalidTransition) && !errors.Is(err, store.ErrTransient) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, succeeded)
	})

	t.Run("find by status and count", func(t *testing.T) {
		s, _ := factory(t)
		ctx := context.Background()

		var ids []uuid.UUID
		for i := 0; i < 3; i++ {
			job := newJob(t, "a.wav")
			require.NoError(t, s.Create(ctx, job))
			ids = append(ids, job.ID)
		}
		require.NoError(t, s.UpdateStatus(ctx, ids[0], domain.JobStatusProcessing, nil))
		require.NoError(t, s.UpdateStatus(ctx, ids[1], domain.JobStatusProcessing, nil))
		require.NoError(t, s.UpdateStatus(ctx, ids[1], domain.JobStatusCompleted, strPtr("ok")))

		processing, err := s.FindByStatus(ctx, domain.JobStatusProcessing, 0, 0)
		require.NoError(t, err)
		require.Len(t, processing, 1)
		assert.Equal(t, ids[0], processing[0].ID)

		stale, err := s.FindByStatus(ctx, domain.JobStatusProcessing, time.Hour, 0)
		require.NoError(t, err)
		assert.Empty(t, stale)

		pending, err := s.FindByStatus(ctx, domain.JobStatusPending, 0, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, ids[2], pending[0].ID)

		counts, err := s.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts[domain.JobStatusPending])
		assert.Equal(t, 1, counts[domain.JobStatusProcessing])
		assert.Equal(t, 1, counts[domain.JobStatusCompleted])
		assert.Equal(t, 0, counts[domain.JobStatusFailed])
	})

	t.Run("find respects limit", func(t *testing.T) {
		s, _ := factory(t)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Create(ctx, newJob(t, "a.wav")))
		}

		jobs, err := s.FindByStatus(ctx, domain.JobStatusPending, 0, 2)
		require.NoError(t, err)
		assert.Len(t, jobs, 2)
	})
}

// RunJobQueueTests exercises the store.JobQueue contract.
func RunJobQueueTests(t *testing.T, factory Factory) {
	t.Run("fifo order", func(t *testing.T) {
		_, q := factory(t)
		ctx := context.Background()

		ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
		for _, id := range ids {
			require.NoError(t, q.Enqueue(ctx, id))
		}

		n, err := q.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		for _, want := range ids {
			got, err := q.Dequeue(ctx, time.Second)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}

		n, err = q.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("empty queue times out", func(t *testing.T) {
		_, q := factory(t)
		start := time.Now()
		_, err := q.Dequeue(context.Background(), 100*time.Millisecond)
		assert.ErrorIs(t, err, store.ErrQueueEmpty)
		assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("cancelled context", func(t *testing.T) {
		_, q := factory(t)
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)

		_, err := q.Dequeue(ctx, time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("blocked dequeue receives later enqueue", func(t *testing.T) {
		_, q := factory(t)
		ctx := context.Background()
		id := uuid.New()

		time.AfterFunc(50*time.Millisecond, func() {
			_ = q.Enqueue(ctx, id)
		})

		got, err := q.Dequeue(ctx, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("each id delivered once", func(t *testing.T) {
		_, q := factory(t)
		ctx := context.Background()

		const total = 20
		for i := 0; i < total; i++ {
			require.NoError(t, q.Enqueue(ctx, uuid.New()))
		}

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = make(map[uuid.UUID]int)
		)
		for c := 0; c < 4; c++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					id, err := q.Dequeue(ctx, 200*time.Millisecond)
					if errors.Is(err, store.ErrQueueEmpty) {
						return
					}
					if err != nil {
						if errors.Is(err, store.ErrTransient) {
							continue
						}
						t.Errorf("unexpected dequeue error: %v", err)
						return
					}
					mu.Lock()
					seen[id]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Len(t, seen, total)
		for id, n := range seen {
			assert.Equal(t, 1, n, "id %s delivered %d times", id, n)
		}
	})
}
