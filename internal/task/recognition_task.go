package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/platform/logger"
	"github.com/phrazzld/asrq/internal/recognition"
	"github.com/phrazzld/asrq/internal/store"
	"github.com/sethvargo/go-retry"
)

// Status writes that fail with store.ErrTransient are retried this often.
const (
	statusWriteRetries     = 3
	statusWriteBaseBackoff = 50 * time.Millisecond
	statusWriteMaxBackoff  = time.Second
)

// RecognitionTask drives one job from pending to a terminal status.
type RecognitionTask struct {
	job        *domain.Job
	jobs       store.JobStore
	recognizer recognition.Recognizer
	logger     *slog.Logger
}

var _ Task = (*RecognitionTask)(nil)

// NewRecognitionTask creates a RecognitionTask for job.
func NewRecognitionTask(
	job *domain.Job,
	jobs store.JobStore,
	recognizer recognition.Recognizer,
	logger *slog.Logger,
) *RecognitionTask {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecognitionTask{
		job:        job,
		jobs:       jobs,
		recognizer: recognizer,
		logger:     logger,
	}
}

// ID returns the job ID.
func (t *RecognitionTask) ID() uuid.UUID {
	return t.job.ID
}

// Type returns TaskTypeRecognition.
func (t *RecognitionTask) Type() string {
	return TaskTypeRecognition
}

// Execute marks the job processing, runs recognition on its file and
// records either the transcript (completed) or the failure message (failed).
//
// Status writes are retried while the store reports a transient error. If
// the job still cannot be marked processing it is left untouched and the
// recognizer is not called. A terminal write that still fails is returned
// and leaves the job in processing.
func (t *RecognitionTask) Execute(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, t.logger).With(
		"job_id", t.job.ID,
		"file_path", t.job.FilePath,
	)

	if err := t.updateStatus(ctx, log, domain.JobStatusProcessing, nil); err != nil {
		log.Error("failed to mark job processing; abandoning job", "error", err)
		return fmt.Errorf("failed to mark job %s processing: %w", t.job.ID, err)
	}
	log.Info("processing job")

	text, recErr := t.recognize(ctx)
	if recErr != nil {
		message := recErr.Error()
		log.Warn("recognition failed", "error", recErr)

		if err := t.updateStatus(ctx, log, domain.JobStatusFailed, &message); err != nil {
			log.Error("failed to record job failure; job stays processing", "error", err)
			return errors.Join(recErr, fmt.Errorf("failed to mark job %s failed: %w", t.job.ID, err))
		}
		return recErr
	}

	if err := t.updateStatus(ctx, log, domain.JobStatusCompleted, &text); err != nil {
		log.Error("failed to record transcript; job stays processing", "error", err)
		return fmt.Errorf("failed to mark job %s completed: %w", t.job.ID, err)
	}

	log.Info("job completed", "transcript_length", len(text))
	return nil
}

// recognize calls the recognizer, turning panics and empty output into
// errors that wrap recognition.ErrRecognitionFailed.
func (t *RecognitionTask) recognize(ctx context.Context) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: recognizer panicked: %v", recognition.ErrRecognitionFailed, r)
		}
	}()

	raw, err := t.recognizer.Recognize(ctx, t.job.FilePath)
	if err != nil {
		if !errors.Is(err, recognition.ErrRecognitionFailed) {
			err = fmt.Errorf("%w: %w", recognition.ErrRecognitionFailed, err)
		}
		return "", err
	}
	return recognition.NormalizeTranscript(raw)
}

// updateStatus writes the job status, retrying transient store errors.
func (t *RecognitionTask) updateStatus(
	ctx context.Context,
	log *slog.Logger,
	status domain.JobStatus,
	result *string,
) error {
	backoff := retry.WithMaxRetries(statusWriteRetries,
		retry.WithCappedDuration(statusWriteMaxBackoff, retry.NewExponential(statusWriteBaseBackoff)))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := t.jobs.UpdateStatus(ctx, t.job.ID, status, result)
		if errors.Is(err, store.ErrTransient) {
			log.Warn("retrying job status write", "status", status, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}
