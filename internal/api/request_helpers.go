package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/domain"
)

// getPathJobID extracts and parses a job ID from the URL path parameters.
// Missing and malformed values both wrap domain.ErrInvalidID.
func getPathJobID(r *http.Request, paramName string) (uuid.UUID, error) {
	return domain.ParseJobID(chi.URLParam(r, paramName))
}
