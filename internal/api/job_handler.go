package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/asrq/internal/api/shared"
	"github.com/phrazzld/asrq/internal/platform/logger"
	"github.com/phrazzld/asrq/internal/service"
)

// TaskIDParam is the chi path parameter naming a task.
const TaskIDParam = "task_id"

// JobHandler handles task submission and status HTTP requests.
type JobHandler struct {
	jobService service.JobService
	logger     *slog.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobService service.JobService, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		jobService: jobService,
		logger:     logger.With("component", "job_handler"),
	}
}

// Recognize handles POST /recognize. It answers 202 as soon as the task is
// recorded and queued; recognition happens later in a worker.
func (h *JobHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req RecognizeRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	job, err := h.jobService.SubmitJob(r.Context(), req.File)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit task")
		return
	}

	log.Info("task submitted", "job_id", job.ID)

	shared.RespondWithJSON(w, r, http.StatusAccepted, RecognizeResponse{
		TaskID:  job.ID.String(),
		Message: SubmittedMessage,
	})
}

// GetStatus handles GET /status/{task_id}.
func (h *JobHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := getPathJobID(r, TaskIDParam)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	job, err := h.jobService.GetJob(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task status")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToStatusResponse(job))
}

// Health handles GET /health.
func (h *JobHandler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobService.Stats(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Service unavailable", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, statsToHealthResponse(stats))
}
