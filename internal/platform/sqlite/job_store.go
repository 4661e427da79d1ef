package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/platform/logger"
	"github.com/phrazzld/asrq/internal/store"
)

const jobColumns = `id, source, file_path, status, result, created_at, updated_at`

// JobStore implements store.JobStore on a SQLite database.
type JobStore struct {
	db     store.DBTX
	conn   *sql.DB // nil when bound to a caller-managed transaction
	logger *slog.Logger
}

// NewJobStore creates a SQLite-backed job store. The schema must already be migrated.
func NewJobStore(db *sql.DB, logger *slog.Logger) *JobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobStore{
		db:     db,
		conn:   db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

var _ store.TxJobStore = (*JobStore)(nil)

// WithTx returns a new JobStore that runs every statement on tx.
func (s *JobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &JobStore{db: tx, logger: s.logger}
}

// Create implements store.JobStore.Create
func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			job.ID.String(),
			job.Source,
			job.FilePath,
			string(job.Status),
			nullString(job.Result),
			formatTime(job.CreatedAt),
			formatTime(job.UpdatedAt),
		)
		return err
	})
	if err != nil {
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return store.NewStoreError("job", "create", "insert failed", mapError(err))
	}

	log.Debug("job created", slog.String("job_id", job.ID.String()))
	return nil
}

// UpdateStatus implements store.JobStore.UpdateStatus
func (s *JobStore) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.JobStatus,
	result *string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	from, ok := status.Predecessor()
	if !ok {
		return fmt.Errorf("%w: cannot move a job to %q", store.ErrInvalidTransition, status)
	}
	if err := domain.CheckResult(status, result); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	update := func(ctx context.Context, db store.DBTX) error {
		res, err := db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, result = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(status), nullString(result), formatTime(time.Now()), id.String(), string(from))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n == 1 {
			return err
		}

		var current string
		err = db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id.String()).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrJobNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: job %s is %s, not %s", store.ErrInvalidTransition, id, current, from)
	}

	err := retryOnBusy(ctx, func() error {
		if s.conn == nil {
			return update(ctx, s.db)
		}
		return store.RunInTransaction(ctx, s.conn, nil, func(ctx context.Context, tx *sql.Tx) error {
			return update(ctx, tx)
		})
	})

	switch {
	case err == nil:
		log.Debug("job status updated",
			slog.String("job_id", id.String()),
			slog.String("status", string(status)))
		return nil
	case errors.Is(err, store.ErrJobNotFound), errors.Is(err, store.ErrInvalidTransition):
		log.Warn("job status update refused",
			slog.String("job_id", id.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return err
	default:
		log.Error("failed to update job status",
			slog.String("job_id", id.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return store.NewStoreError("job", "update status", "update failed", mapError(err))
	}
}

// GetByID implements store.JobStore.GetByID
func (s *JobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	var job *domain.Job
	err := retryOnBusy(ctx, func() error {
		var err error
		job, err = scanJob(s.db.QueryRowContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id.String()))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrJobNotFound
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get job by ID",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, store.NewStoreError("job", "get", "query failed", mapError(err))
	}
	return job, nil
}

// FindByStatus implements store.JobStore.FindByStatus
func (s *JobStore) FindByStatus(
	ctx context.Context,
	status domain.JobStatus,
	olderThan time.Duration,
	limit int,
) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = -1
	}

	var jobs []*domain.Job
	err := retryOnBusy(ctx, func() error {
		jobs = nil
		rows, err := s.db.QueryContext(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE status = ? AND updated_at <= ?
			ORDER BY updated_at ASC
			LIMIT ?`,
			string(status), formatTime(time.Now().Add(-olderThan)), limit)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			job, err := scanJob(rows)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, store.NewStoreError("job", "find by status", "query failed", mapError(err))
	}
	return jobs, nil
}

// CountByStatus implements store.JobStore.CountByStatus
func (s *JobStore) CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error) {
	var counts map[domain.JobStatus]int
	err := retryOnBusy(ctx, func() error {
		counts = make(map[domain.JobStatus]int)
		rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var status string
			var n int
			if err := rows.Scan(&status, &n); err != nil {
				return err
			}
			counts[domain.JobStatus(status)] = n
		}
		return rows.Err()
	})
	if err != nil {
		return nil, store.NewStoreError("job", "count", "query failed", mapError(err))
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job                  domain.Job
		id, status           string
		result               sql.NullString
		createdAt, updatedAt string
	)

	if err := row.Scan(&id, &job.Source, &job.FilePath, &status, &result, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("corrupt job id %q: %w", id, err)
	}
	if job.Status, err = domain.ParseJobStatus(status); err != nil {
		return nil, err
	}
	if result.Valid {
		job.Result = &result.String
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at %q: %w", createdAt, err)
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("corrupt updated_at %q: %w", updatedAt, err)
	}

	return &job, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
