package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the processing state of a recognition job
type JobStatus string

// Possible job status values
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Common validation errors for Job
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrEmptyJobFilePath = errors.New("job file path cannot be empty")
	ErrUnexpectedResult = errors.New("job result must be empty until the job is terminal")
	ErrMissingResult    = errors.New("terminal job must carry a result")
)

// Job is one audio-recognition request. The file path is fixed at submission;
// only Status and Result change afterwards, and only in the order
// pending -> processing -> completed|failed.
type Job struct {
	ID        uuid.UUID `json:"job_id"`
	Source    string    `json:"source"`
	FilePath  string    `json:"file_path"`
	Status    JobStatus `json:"status"`
	Result    *string   `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJob creates a pending Job for an already resolved local file.
// source is the reference the client submitted (a path or a URL).
func NewJob(source, filePath string) (*Job, error) {
	return NewJobWithID(uuid.New(), source, filePath)
}

// NewJobWithID is NewJob for callers that need the ID before the record
// exists, e.g. to name a downloaded file after it.
func NewJobWithID(id uuid.UUID, source, filePath string) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:        id,
		Source:    source,
		FilePath:  filePath,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
// Returns an error if any field fails validation.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.FilePath == "" {
		return ErrEmptyJobFilePath
	}

	if !j.Status.IsValid() {
		return ErrInvalidJobStatus
	}

	if j.Status.IsTerminal() && j.Result == nil {
		return ErrMissingResult
	}

	if !j.Status.IsTerminal() && j.Result != nil {
		return ErrUnexpectedResult
	}

	return nil
}

// Transition moves the job to the given status, recording the result for
// terminal states. It refuses any change not allowed by CanTransitionTo.
func (j *Job) Transition(status JobStatus, result *string) error {
	if !j.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, status)
	}
	if err := CheckResult(status, result); err != nil {
		return err
	}

	j.Status = status
	j.Result = result
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// CheckResult reports whether result is acceptable for a job entering status:
// terminal statuses need one, the others must not carry one.
func CheckResult(status JobStatus, result *string) error {
	if status.IsTerminal() && result == nil {
		return ErrMissingResult
	}
	if !status.IsTerminal() && result != nil {
		return ErrUnexpectedResult
	}
	return nil
}

// IsValid reports whether s is one of the known statuses.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether a job in status s may move to next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// Predecessor returns the only status a job may be in immediately before
// entering s. The second return value is false for pending, which has none.
func (s JobStatus) Predecessor() (JobStatus, bool) {
	switch s {
	case JobStatusProcessing:
		return JobStatusPending, true
	case JobStatusCompleted, JobStatusFailed:
		return JobStatusProcessing, true
	default:
		return "", false
	}
}

// ParseJobStatus converts a stored string into a JobStatus.
func ParseJobStatus(raw string) (JobStatus, error) {
	status := JobStatus(raw)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobStatus, raw)
	}
	return status, nil
}

// ParseJobID parses a client-supplied job identifier.
func ParseJobID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}
