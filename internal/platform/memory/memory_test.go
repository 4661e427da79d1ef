package memory

import (
	"context"
	"testing"

	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/store"
	"github.com/phrazzld/asrq/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func factory(*testing.T) (store.JobStore, store.JobQueue) {
	return NewJobStore(), NewJobQueue()
}

func TestJobStore(t *testing.T) {
	t.Parallel()
	storetest.RunJobStoreTests(t, factory)
}

func TestJobQueue(t *testing.T) {
	t.Parallel()
	storetest.RunJobQueueTests(t, factory)
}

func TestJobStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := NewJobStore()
	ctx := context.Background()
	job, err := domain.NewJob("a.wav", "a.wav")
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, job))

	job.FilePath = "mutated.wav"
	got, err := s.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.wav", got.FilePath)

	got.Status = domain.JobStatusFailed
	again, err := s.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, again.Status)
}
