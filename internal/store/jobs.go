package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/domain"
)

// JobStore defines the interface for job status persistence.
// It is the single source of truth for job state.
type JobStore interface {
	// Create saves a new job record.
	// Returns ErrInvalidEntity if the job fails domain validation and
	// ErrDuplicate if a record with the same ID already exists.
	Create(ctx context.Context, job *domain.Job) error

	// UpdateStatus atomically sets the status, and the result when given,
	// of an existing job. The write only applies when the job is currently
	// in the status that precedes the requested one, so terminal states
	// never change.
	// Returns ErrJobNotFound if the job does not exist and
	// ErrInvalidTransition if the job is not in the required status.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, result *string) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// FindByStatus lists jobs in status whose last update is older than
	// olderThan, oldest first. A limit <= 0 means no limit.
	FindByStatus(ctx context.Context, status domain.JobStatus, olderThan time.Duration, limit int) ([]*domain.Job, error)

	// CountByStatus returns the number of jobs in each status.
	// Statuses without jobs may be absent from the map.
	CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error)
}

// TxJobStore is implemented by SQL-backed job stores that can join a
// caller-managed transaction.
type TxJobStore interface {
	JobStore

	// WithTx returns a new JobStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) JobStore
}

// JobQueue is a durable FIFO of job IDs awaiting a worker.
// It carries only identifiers; job state lives in the JobStore.
type JobQueue interface {
	// Enqueue appends id at the tail. It returns once the entry is durably
	// recorded.
	Enqueue(ctx context.Context, id uuid.UUID) error

	// Dequeue removes and returns the oldest ID, blocking for at most
	// timeout. It returns ErrQueueEmpty when the timeout elapses with
	// nothing to deliver, and ctx.Err() when ctx is done first. Each
	// enqueued ID is delivered to exactly one caller.
	Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, error)

	// Len returns the number of IDs currently waiting.
	Len(ctx context.Context) (int, error)
}
