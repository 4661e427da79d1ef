package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/store"
)

// stuckReportLimit caps how many jobs one check lists individually.
const stuckReportLimit = 100

// StuckJobMonitor periodically reports jobs that have been processing for
// longer than a threshold. Such jobs were usually orphaned by a worker that
// crashed mid-flight. The monitor only logs them; it never changes them.
type StuckJobMonitor struct {
	jobs     store.JobStore
	after    time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewStuckJobMonitor creates a StuckJobMonitor. An interval of zero
// defaults to five minutes.
func NewStuckJobMonitor(jobs store.JobStore, after, interval time.Duration, logger *slog.Logger) *StuckJobMonitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StuckJobMonitor{
		jobs:     jobs,
		after:    after,
		interval: interval,
		logger:   logger.With("component", "stuck_job_monitor"),
	}
}

// Run checks every interval until ctx is cancelled.
func (m *StuckJobMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Check(ctx); err != nil && ctx.Err() == nil {
				m.logger.Error("failed to check for stuck jobs", "error", err)
			}
		}
	}
}

// Check lists and logs the jobs currently considered stuck.
func (m *StuckJobMonitor) Check(ctx context.Context) ([]*domain.Job, error) {
	stuck, err := m.jobs.FindByStatus(ctx, domain.JobStatusProcessing, m.after, stuckReportLimit)
	if err != nil {
		return nil, err
	}

	if len(stuck) > 0 {
		m.logger.Warn("found stuck jobs", "count", len(stuck), "threshold", m.after)
		for _, job := range stuck {
			m.logger.Warn("job stuck in processing",
				"job_id", job.ID,
				"file_path", job.FilePath,
				"since", job.UpdatedAt)
		}
	}
	return stuck, nil
}
