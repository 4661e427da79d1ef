package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/platform/logger"
	"github.com/phrazzld/asrq/internal/store"
)

// DefaultPollInterval is used when NewPostgresJobQueue receives a non-positive interval.
const DefaultPollInterval = 200 * time.Millisecond

// PostgresJobQueue implements store.JobQueue on the job_queue table.
// Concurrent consumers never receive the same row: the oldest unlocked row
// is deleted and returned in a single statement using FOR UPDATE SKIP LOCKED.
// Enqueues from this process wake local waiters immediately; entries added by
// other processes are picked up on the next poll.
type PostgresJobQueue struct {
	db           *sql.DB
	pollInterval time.Duration
	signal       *store.Signal
	logger       *slog.Logger
}

// NewPostgresJobQueue creates a queue backed by db.
func NewPostgresJobQueue(db *sql.DB, pollInterval time.Duration, logger *slog.Logger) *PostgresJobQueue {
	if db == nil {
		panic("db cannot be nil")
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobQueue{
		db:           db,
		pollInterval: pollInterval,
		signal:       store.NewSignal(),
		logger:       logger.With(slog.String("component", "job_queue")),
	}
}

var _ store.JobQueue = (*PostgresJobQueue)(nil)

// Enqueue implements store.JobQueue.Enqueue
func (q *PostgresJobQueue) Enqueue(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO job_queue (job_id, enqueued_at) VALUES ($1, $2)`,
		id, time.Now().UTC())
	if err != nil {
		logger.FromContextOrDefault(ctx, q.logger).Error("failed to enqueue job",
			slog.String("job_id", id.String()),
			slog.String("error", err.Error()))
		return store.NewStoreError("queue", "enqueue", "insert failed", MapError(err))
	}

	q.signal.Notify()
	return nil
}

// Dequeue implements store.JobQueue.Dequeue
func (q *PostgresJobQueue) Dequeue(ctx context.Context, timeout time.Duration) (uuid.UUID, error) {
	return store.PollUntil(ctx, timeout, q.pollInterval, q.signal, q.take)
}

func (q *PostgresJobQueue) take(ctx context.Context) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := q.db.QueryRowContext(ctx, `
		DELETE FROM job_queue
		WHERE seq = (
			SELECT seq FROM job_queue
			ORDER BY seq
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING job_id
	`).Scan(&id)

	switch {
	case err == nil:
		return id, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return uuid.Nil, false, nil
	default:
		return uuid.Nil, false, store.NewStoreError("queue", "dequeue", "delete failed", MapError(err))
	}
}

// Len implements store.JobQueue.Len
func (q *PostgresJobQueue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_queue`).Scan(&n); err != nil {
		return 0, store.NewStoreError("queue", "len", "count failed", MapError(err))
	}
	return n, nil
}
