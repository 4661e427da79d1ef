package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/platform/logger"
	"github.com/phrazzld/asrq/internal/store"
)

// DefaultPollInterval is used when NewJobQueue receives a non-positive interval.
const DefaultPollInterval = 200 * time.Millisecond

// JobQueue implements store.JobQueue on the job_queue table. The oldest row
// is removed and returned by a single DELETE ... RETURNING statement, which
// SQLite executes under its write lock, so no two consumers share an entry.
type JobQueue struct {
	db           *sql.DB
	pollInterval time.Duration
	signal       *store.Signal
	logger       *slog.Logger
}

// NewJobQueue creates a SQLite-backed queue.
func NewJobQueue(db *sql.DB, pollInterval time.Duration, logger *slog.Logger) *JobQueue {
	if db == nil {
		panic("db cannot be nil")
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobQueue{
		db:           db,
		pollInterval: pollInterval,
		signal:       store.NewSignal(),
		logger:       logger.With(slog.String("component", "job_queue")),
	}
}

var _ store.JobQueue = (*JobQueue)(nil)

// Enqueue implements store.JobQueue.Enqueue
func (q *JobQueue) Enqueue(ctx context.Context, id uuid.UUID) error {
	err := retryOnBusy(ctx, func() error {
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO job_queue (job_id, enqueued_at) VALUES (?, ?)`,
			id.String(), formatTime(time.Now()))
		return err
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, q.logger).Error("failed to enqueue job",
			slog.String("job_id", id.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("queue", "enqueue", "insert failed", mapError(err))
	}

	q.signal.Notify()
	return nil
}

// Dequeue implements store.JobQueue.Dequeue
func (q *JobQueue) Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, error) {
	return store.PollUntil(ctx, timeout, q.pollInterval, q.signal, q.take)
}

func (q *JobQueue) take(ctx context.Context) (uuid.UUID, bool, error) {
	var raw string
	err := retryOnBusy(ctx, func() error {
		return q.db.QueryRowContext(ctx, `
			DELETE FROM job_queue
			WHERE seq = (SELECT MIN(seq) FROM job_queue)
			RETURNING job_id`).Scan(&raw)
	})

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return uuid.Nil, false, nil
	case err != nil:
		return uuid.Nil, false, store.NewStoreError("queue", "dequeue", "delete failed", mapError(err))
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		// The row is already gone; report it rather than loop on it.
		return uuid.Nil, false, store.NewStoreError("queue", "dequeue", "corrupt entry",
			fmt.Errorf("%w: %q", store.ErrInvalidEntity, raw))
	}
	return id, true, nil
}

// Len implements store.JobQueue.Len
func (q *JobQueue) Len(ctx context.Context) (int, error) {
	var n int
	err := retryOnBusy(ctx, func() error {
		return q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_queue`).Scan(&n)
	})
	if err != nil {
		return 0, store.NewStoreError("queue", "len", "count failed", mapError(err))
	}
	return n, nil
}
