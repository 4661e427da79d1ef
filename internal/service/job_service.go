package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/fetch"
	"github.com/phrazzld/asrq/internal/platform/logger"
	"github.com/phrazzld/asrq/internal/store"
)

// JobService provides the job operations exposed by the API.
type JobService interface {
	// SubmitJob accepts a local path or an http(s) URL, records a pending job
	// for it and publishes the job ID to the queue. It does not wait for
	// recognition.
	SubmitJob(ctx context.Context, source string) (*domain.Job, error)

	// GetJob returns the job record exactly as stored.
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// Stats returns job counts per status and the number of queued IDs.
	Stats(ctx context.Context) (*Stats, error)
}

// Stats is a point-in-time summary of the system.
type Stats struct {
	Jobs       map[domain.JobStatus]int `json:"jobs"`
	QueueDepth int                      `json:"queue_depth"`
}

// jobServiceImpl implements the JobService interface
type jobServiceImpl struct {
	jobs    store.JobStore
	queue   store.JobQueue
	fetcher fetch.Fetcher
	logger  *slog.Logger
}

// NewJobService creates a new JobService.
// It returns an error if any of the required dependencies are nil.
func NewJobService(
	jobs store.JobStore,
	queue store.JobQueue,
	fetcher fetch.Fetcher,
	logger *slog.Logger,
) (JobService, error) {
	if jobs == nil {
		return nil, &JobServiceError{Operation: "create_service", Message: "job store cannot be nil"}
	}
	if queue == nil {
		return nil, &JobServiceError{Operation: "create_service", Message: "job queue cannot be nil"}
	}
	if fetcher == nil {
		return nil, &JobServiceError{Operation: "create_service", Message: "fetcher cannot be nil"}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &jobServiceImpl{
		jobs:    jobs,
		queue:   queue,
		fetcher: fetcher,
		logger:  logger.With("component", "job_service"),
	}, nil
}

// SubmitJob resolves source to a local file, saves a pending job and then
// enqueues its ID. The record is always written before the ID is published,
// so a worker never dequeues an ID without a record.
//
// If the enqueue fails after the record was saved, the error is returned
// and the record stays pending.
func (s *jobServiceImpl) SubmitJob(ctx context.Context, source string) (*domain.Job, error) {
	const op = "submit_job"

	source = strings.TrimSpace(source)
	if source == "" {
		return nil, inputError(op, "file cannot be empty")
	}

	id := uuid.New()
	log := logger.FromContextOrDefault(ctx, s.logger).With("job_id", id.String())

	filePath, err := s.resolve(ctx, op, source, id)
	if err != nil {
		log.Warn("rejected job submission", "source", source, "error", err)
		return nil, err
	}

	job, err := domain.NewJobWithID(id, source, filePath)
	if err != nil {
		return nil, NewJobServiceError(op, "failed to create job object", err)
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		log.Error("failed to save job", "error", err)
		if fetch.IsURL(source) {
			s.removeDownload(log, filePath)
		}
		return nil, NewJobServiceError(op, "failed to save job", err)
	}

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		log.Error("failed to enqueue job; record remains pending",
			"error", err,
			"file_path", filePath)
		return nil, NewJobServiceError(op, "failed to enqueue job", err)
	}

	log.Info("job submitted",
		"source", source,
		"file_path", filePath)

	return job, nil
}

// removeDownload deletes a file fetched for a job that was never saved.
func (s *jobServiceImpl) removeDownload(log *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to remove downloaded file", "file_path", path, "error", err)
	}
}

// resolve returns the local path for source, downloading it first when it
// is a URL.
func (s *jobServiceImpl) resolve(ctx context.Context, op, source string, id uuid.UUID) (string, error) {
	if fetch.IsURL(source) {
		path, err := s.fetcher.Fetch(ctx, source, id)
		if err != nil {
			return "", &JobServiceError{
				Operation: op,
				Message:   "failed to download file",
				Err:       errors.Join(ErrFetch, err),
			}
		}
		return path, nil
	}

	info, err := os.Stat(source)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", inputError(op, "file not found")
	case err != nil:
		return "", inputError(op, fmt.Sprintf("file cannot be accessed: %v", errors.Unwrap(err)))
	case info.IsDir():
		return "", inputError(op, "file is a directory")
	}

	abs, err := filepath.Abs(source)
	if err != nil {
		return "", inputError(op, "file path cannot be resolved")
	}
	return abs, nil
}

// GetJob retrieves a job by its ID.
func (s *jobServiceImpl) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			log.Debug("job not found", "job_id", id)
			return nil, ErrJobNotFound
		}
		log.Error("failed to retrieve job", "error", err, "job_id", id)
		return nil, NewJobServiceError("get_job", "failed to retrieve job", err)
	}

	log.Debug("retrieved job successfully",
		"job_id", id,
		"status", job.Status)

	return job, nil
}

// Stats collects job counts and queue depth.
func (s *jobServiceImpl) Stats(ctx context.Context) (*Stats, error) {
	counts, err := s.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, NewJobServiceError("stats", "failed to count jobs", err)
	}

	depth, err := s.queue.Len(ctx)
	if err != nil {
		return nil, NewJobServiceError("stats", "failed to read queue depth", err)
	}

	jobs := map[domain.JobStatus]int{
		domain.JobStatusPending:    0,
		domain.JobStatusProcessing: 0,
		domain.JobStatusCompleted:  0,
		domain.JobStatusFailed:     0,
	}
	for status, n := range counts {
		jobs[status] = n
	}

	return &Stats{Jobs: jobs, QueueDepth: depth}, nil
}
