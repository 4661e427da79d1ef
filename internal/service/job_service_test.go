package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/fetch"
	"github.com/phrazzld/asrq/internal/mocks"
	"github.com/phrazzld/asrq/internal/platform/memory"
	"github.com/phrazzld/asrq/internal/service"
	"github.com/phrazzld/asrq/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures the order of store and queue calls.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o600))
	return path
}

func newService(t *testing.T, jobs store.JobStore, queue store.JobQueue, fetcher fetch.Fetcher) service.JobService {
	t.Helper()
	svc, err := service.NewJobService(jobs, queue, fetcher, nil)
	require.NoError(t, err)
	return svc
}

func TestNewJobService_RequiresDependencies(t *testing.T) {
	t.Parallel()

	jobs, queue, fetcher := &mocks.MockJobStore{}, &mocks.MockJobQueue{}, &mocks.MockFetcher{}

	_, err := service.NewJobService(nil, queue, fetcher, nil)
	assert.Error(t, err)
	_, err = service.NewJobService(jobs, nil, fetcher, nil)
	assert.Error(t, err)
	_, err = service.NewJobService(jobs, queue, nil, nil)
	assert.Error(t, err)
}

func TestSubmitJob_LocalFile(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	jobs := &mocks.MockJobStore{
		CreateFn: func(_ context.Context, job *domain.Job) error {
			rec.add("create:" + job.ID.String())
			return nil
		},
	}
	queue := &mocks.MockJobQueue{
		EnqueueFn: func(_ context.Context, id uuid.UUID) error {
			rec.add("enqueue:" + id.String())
			return nil
		},
	}
	svc := newService(t, jobs, queue, &mocks.MockFetcher{})

	path := writeAudio(t)
	job, err := svc.SubmitJob(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, path, job.Source)
	assert.Equal(t, path, job.FilePath)
	assert.Nil(t, job.Result)
	assert.Equal(t, []string{"create:" + job.ID.String(), "enqueue:" + job.ID.String()}, rec.list())
}

func TestSubmitJob_RelativePathIsResolved(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wav"), []byte("RIFF"), 0o600))
	t.Chdir(dir)

	jobs := &mocks.MockJobStore{}
	svc := newService(t, jobs, &mocks.MockJobQueue{}, &mocks.MockFetcher{})

	job, err := svc.SubmitJob(context.Background(), "a.wav")
	require.NoError(t, err)
	assert.Equal(t, "a.wav", job.Source)
	assert.True(t, filepath.IsAbs(job.FilePath))
	assert.Equal(t, "a.wav", filepath.Base(job.FilePath))
}

func TestSubmitJob_InputValidation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name   string
		source string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"nonexistent", filepath.Join(dir, "missing.wav")},
		{"directory", dir},
		{"unsupported scheme treated as path", "ftp://example.com/a.wav"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			jobs, queue := &mocks.MockJobStore{}, &mocks.MockJobQueue{}
			svc := newService(t, jobs, queue, &mocks.MockFetcher{})

			job, err := svc.SubmitJob(context.Background(), tc.source)
			assert.Nil(t, job)
			assert.ErrorIs(t, err, service.ErrInputValidation)
			assert.Empty(t, jobs.Created(), "no record is written")
			assert.Empty(t, queue.Enqueued(), "nothing is queued")
		})
	}
}

func TestSubmitJob_URL(t *testing.T) {
	t.Parallel()

	var fetchedID uuid.UUID
	fetcher := &mocks.MockFetcher{
		FetchFn: func(_ context.Context, rawURL string, jobID uuid.UUID) (string, error) {
			assert.Equal(t, "https://example.com/a.wav", rawURL)
			fetchedID = jobID
			return "audio/" + jobID.String() + "_a.wav", nil
		},
	}
	jobs, queue := &mocks.MockJobStore{}, &mocks.MockJobQueue{}
	svc := newService(t, jobs, queue, fetcher)

	job, err := svc.SubmitJob(context.Background(), "https://example.com/a.wav")
	require.NoError(t, err)

	assert.Equal(t, fetchedID, job.ID, "download is named after the job")
	assert.Equal(t, "https://example.com/a.wav", job.Source)
	assert.Equal(t, "audio/"+job.ID.String()+"_a.wav", job.FilePath)
	assert.Equal(t, []uuid.UUID{job.ID}, queue.Enqueued())
}

func TestSubmitJob_FetchFailureWritesNothing(t *testing.T) {
	t.Parallel()

	fetcher := &mocks.MockFetcher{Err: errors.Join(fetch.ErrFetchFailed, errors.New("connection refused"))}
	jobs, queue := &mocks.MockJobStore{}, &mocks.MockJobQueue{}
	svc := newService(t, jobs, queue, fetcher)

	job, err := svc.SubmitJob(context.Background(), "http://unreachable.invalid/a.wav")
	assert.Nil(t, job)
	assert.ErrorIs(t, err, service.ErrFetch)
	assert.ErrorIs(t, err, fetch.ErrFetchFailed)
	assert.NotErrorIs(t, err, service.ErrInputValidation)
	assert.Empty(t, jobs.Created())
	assert.Empty(t, queue.Enqueued())
}

func TestSubmitJob_StoreFailureSkipsEnqueue(t *testing.T) {
	t.Parallel()

	jobs := &mocks.MockJobStore{
		CreateFn: func(context.Context, *domain.Job) error { return store.ErrTransient },
	}
	queue := &mocks.MockJobQueue{}
	svc := newService(t, jobs, queue, &mocks.MockFetcher{})

	_, err := svc.SubmitJob(context.Background(), writeAudio(t))

	var svcErr *service.JobServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "submit_job", svcErr.Operation)
	assert.ErrorIs(t, err, store.ErrTransient)
	assert.Empty(t, queue.Enqueued())
}

func TestSubmitJob_StoreFailureRemovesDownload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var downloaded string
	fetcher := &mocks.MockFetcher{
		FetchFn: func(_ context.Context, _ string, jobID uuid.UUID) (string, error) {
			downloaded = filepath.Join(dir, jobID.String()+"_a.wav")
			return downloaded, os.WriteFile(downloaded, []byte("RIFF"), 0o600)
		},
	}
	jobs := &mocks.MockJobStore{
		CreateFn: func(context.Context, *domain.Job) error { return store.ErrTransient },
	}
	svc := newService(t, jobs, &mocks.MockJobQueue{}, fetcher)

	_, err := svc.SubmitJob(context.Background(), "https://example.com/a.wav")
	assert.ErrorIs(t, err, store.ErrTransient)
	require.NotEmpty(t, downloaded)
	assert.NoFileExists(t, downloaded)
}

func TestSubmitJob_StoreFailureKeepsLocalFile(t *testing.T) {
	t.Parallel()

	jobs := &mocks.MockJobStore{
		CreateFn: func(context.Context, *domain.Job) error { return store.ErrTransient },
	}
	svc := newService(t, jobs, &mocks.MockJobQueue{}, &mocks.MockFetcher{})

	path := writeAudio(t)
	_, err := svc.SubmitJob(context.Background(), path)
	assert.ErrorIs(t, err, store.ErrTransient)
	assert.FileExists(t, path)
}

func TestSubmitJob_EnqueueFailureLeavesPendingRecord(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	queue := &mocks.MockJobQueue{
		EnqueueFn: func(context.Context, uuid.UUID) error { return store.ErrTransient },
	}
	svc := newService(t, jobs, queue, &mocks.MockFetcher{})

	_, err := svc.SubmitJob(context.Background(), writeAudio(t))
	assert.ErrorIs(t, err, store.ErrTransient)

	require.Len(t, queue.Enqueued(), 1)
	stored, err := jobs.GetByID(context.Background(), queue.Enqueued()[0])
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, stored.Status)
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	queue := memory.NewJobQueue()
	svc := newService(t, jobs, queue, &mocks.MockFetcher{})

	submitted, err := svc.SubmitJob(context.Background(), writeAudio(t))
	require.NoError(t, err)

	got, err := svc.GetJob(context.Background(), submitted.ID)
	require.NoError(t, err)
	assert.Equal(t, submitted.ID, got.ID)
	assert.Equal(t, domain.JobStatusPending, got.Status)

	_, err = svc.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, service.ErrJobNotFound)
}

func TestGetJob_StoreFailure(t *testing.T) {
	t.Parallel()

	jobs := &mocks.MockJobStore{
		GetByIDFn: func(context.Context, uuid.UUID) (*domain.Job, error) { return nil, store.ErrTransient },
	}
	svc := newService(t, jobs, &mocks.MockJobQueue{}, &mocks.MockFetcher{})

	_, err := svc.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTransient)
	assert.NotErrorIs(t, err, service.ErrJobNotFound)
}

func TestStats(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobStore()
	queue := memory.NewJobQueue()
	svc := newService(t, jobs, queue, &mocks.MockFetcher{})

	for i := 0; i < 3; i++ {
		_, err := svc.SubmitJob(context.Background(), writeAudio(t))
		require.NoError(t, err)
	}

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Jobs[domain.JobStatusPending])
	assert.Equal(t, 0, stats.Jobs[domain.JobStatusFailed])
	assert.Len(t, stats.Jobs, 4)
	assert.Equal(t, 3, stats.QueueDepth)
}

func TestNewJobServiceError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, service.NewJobServiceError("op", "msg", nil))
	assert.Equal(t, service.ErrJobNotFound, service.NewJobServiceError("op", "msg", store.ErrJobNotFound))

	err := service.NewJobServiceError("get_job", "failed", store.ErrTransient)
	assert.EqualError(t, err, "job service get_job failed: failed: "+store.ErrTransient.Error())
}
