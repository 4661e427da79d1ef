package task

import (
	"context"

	"github.com/google/uuid"
)

// Task type constants
const (
	// TaskTypeRecognition transcribes the audio of one job
	TaskTypeRecognition = "recognition"
)

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the identifier of the job the task works on
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// Submitter hands tasks to workers.
type Submitter interface {
	// Submit blocks until a worker or backlog slot accepts task, ctx is
	// done, or the submitter is closed.
	Submit(ctx context.Context, task Task) error
}
