package api

import (
	"time"

	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/service"
)

// SubmittedMessage acknowledges an accepted recognition request.
const SubmittedMessage = "Task submitted successfully"

// RecognizeRequest is the body of POST /recognize. File is a local path on
// the server or an http(s) URL.
type RecognizeRequest struct {
	File string `json:"file" validate:"required"`
}

// RecognizeResponse acknowledges a submitted task.
type RecognizeResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// TaskStatusResponse reports the stored state of a task.
type TaskStatusResponse struct {
	TaskID    string    `json:"task_id"`
	Status    string    `json:"status"`
	Result    *string   `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string         `json:"status"`
	Jobs       map[string]int `json:"jobs"`
	QueueDepth int            `json:"queue_depth"`
}

func jobToStatusResponse(job *domain.Job) TaskStatusResponse {
	return TaskStatusResponse{
		TaskID:    job.ID.String(),
		Status:    string(job.Status),
		Result:    job.Result,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

func statsToHealthResponse(stats *service.Stats) HealthResponse {
	jobs := make(map[string]int, len(stats.Jobs))
	for status, n := range stats.Jobs {
		jobs[string(status)] = n
	}
	return HealthResponse{
		Status:     "ok",
		Jobs:       jobs,
		QueueDepth: stats.QueueDepth,
	}
}
