package postgres

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

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	conn   *sql.DB // nil when bound to a caller-managed transaction
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the JobStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db *sql.DB, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		conn:   db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements store.TxJobStore interface
var _ store.TxJobStore = (*PostgresJobStore)(nil)

// WithTx returns a new JobStore that runs every statement on tx.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.JobStore.Create
// It validates the job and inserts the full record in one statement.
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.Source,
		job.FilePath,
		job.Status,
		job.Result,
		job.CreatedAt.UTC(),
		job.UpdatedAt.UTC(),
	)
	if err != nil {
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return store.NewStoreError("job", "create", "insert failed", MapError(err))
	}

	log.Debug("job created",
		slog.String("job_id", job.ID.String()),
		slog.String("status", string(job.Status)))
	return nil
}

// UpdateStatus implements store.JobStore.UpdateStatus
// The WHERE clause carries the required predecessor status, so the update
// either applies fully or not at all. When no row matches, the current row is
// read inside the same transaction to report not-found or an invalid transition.
func (s *PostgresJobStore) UpdateStatus(
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
		res, err := db.ExecContext(ctx, `
			UPDATE jobs
			SET status = $1, result = $2, updated_at = $3
			WHERE id = $4 AND status = $5
		`, status, result, time.Now().UTC(), id, from)
		if err != nil {
			return store.NewStoreError("job", "update status", "update failed", MapError(err))
		}

		n, err := CheckRowsAffected(res)
		if err != nil {
			return store.NewStoreError("job", "update status", "update failed", MapError(err))
		}
		if n == 1 {
			return nil
		}

		var current string
		err = db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrJobNotFound
		}
		if err != nil {
			return store.NewStoreError("job", "update status", "lookup failed", MapError(err))
		}
		return fmt.Errorf("%w: job %s is %s, not %s", store.ErrInvalidTransition, id, current, from)
	}

	var err error
	if s.conn != nil {
		err = store.RunInTransaction(ctx, s.conn, nil, func(ctx context.Context, tx *sql.Tx) error {
			return update(ctx, tx)
		})
	} else {
		err = update(ctx, s.db)
	}

	if err != nil {
		log.Warn("job status update refused",
			slog.String("job_id", id.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return err
	}

	log.Debug("job status updated",
		slog.String("job_id", id.String()),
		slog.String("status", string(status)))
	return nil
}

// GetByID implements store.JobStore.GetByID
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("job not found", slog.String("job_id", id.String()))
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to get job by ID",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, store.NewStoreError("job", "get", "query failed", MapError(err))
	}

	return job, nil
}

// FindByStatus implements store.JobStore.FindByStatus
func (s *PostgresJobStore) FindByStatus(
	ctx context.Context,
	status domain.JobStatus,
	olderThan time.Duration,
	limit int,
) ([]*domain.Job, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE status = $1 AND updated_at <= $2
		ORDER BY updated_at ASC
		LIMIT $3
	`, status, time.Now().UTC().Add(-olderThan), limitArg)
	if err != nil {
		return nil, store.NewStoreError("job", "find by status", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, store.NewStoreError("job", "find by status", "scan failed", MapError(err))
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("job", "find by status", "iteration failed", MapError(err))
	}

	return jobs, nil
}

// CountByStatus implements store.JobStore.CountByStatus
func (s *PostgresJobStore) CountByStatus(ctx context.Context) (map[domain.JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, store.NewStoreError("job", "count", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, store.NewStoreError("job", "count", "scan failed", MapError(err))
		}
		counts[domain.JobStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("job", "count", "iteration failed", MapError(err))
	}

	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job    domain.Job
		status string
		result sql.NullString
	)

	if err := row.Scan(
		&job.ID,
		&job.Source,
		&job.FilePath,
		&status,
		&result,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := domain.ParseJobStatus(status)
	if err != nil {
		return nil, err
	}
	job.Status = parsed
	if result.Valid {
		job.Result = &result.String
	}
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()

	return &job, nil
}
