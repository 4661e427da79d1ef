package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/fetch"
	"github.com/phrazzld/asrq/internal/service"
	"github.com/phrazzld/asrq/internal/service/auth"
	"github.com/phrazzld/asrq/internal/store"
	"github.com/stretchr/testify/assert"
)

func inputErr(reason string) error {
	return &service.JobServiceError{
		Operation: "submit_job",
		Message:   reason,
		Err:       service.ErrInputValidation,
	}
}

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"nil error", nil, http.StatusInternalServerError},
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"wrapped expired token", fmt.Errorf("authenticate: %w", auth.ErrExpiredToken), http.StatusUnauthorized},
		{"missing token", auth.ErrMissingToken, http.StatusUnauthorized},
		{"service not found", service.ErrJobNotFound, http.StatusNotFound},
		{"store not found", store.ErrJobNotFound, http.StatusNotFound},
		{"malformed id", fmt.Errorf("%w: %q", domain.ErrInvalidID, "abc"), http.StatusNotFound},
		{"input validation", inputErr("file not found"), http.StatusBadRequest},
		{"fetch failure", errors.Join(service.ErrFetch, fetch.ErrTooLarge), http.StatusBadRequest},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"transient store error", store.ErrTransient, http.StatusInternalServerError},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedStatus, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, "An unexpected error occurred"},
		{"expired token", auth.ErrExpiredToken, "Token expired"},
		{"invalid token", auth.ErrInvalidToken, "Invalid token"},
		{"not found", service.ErrJobNotFound, "Task not found"},
		{"malformed id", domain.ErrInvalidID, "Task not found"},
		{"input reason", inputErr("file not found"), "File not found"},
		{"input without reason", service.ErrInputValidation, "Invalid input"},
		{"fetch failure", errors.Join(service.ErrFetch, errors.New("GET http://10.0.0.1/a.wav: refused")), "Failed to download file"},
		{"invalid entity", store.ErrInvalidEntity, "Invalid entity data"},
		{"internal details hidden", errors.New("pq: relation jobs does not exist"), "An unexpected error occurred"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, GetSafeErrorMessage(tc.err))
		})
	}
}

func TestHandleAPIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		fallback     string
		expectedCode int
		expectedBody string
	}{
		{
			name:         "mapped error ignores fallback",
			err:          service.ErrJobNotFound,
			fallback:     "Failed to get task status",
			expectedCode: http.StatusNotFound,
			expectedBody: `{"error":"Task not found"}`,
		},
		{
			name:         "internal error uses fallback",
			err:          errors.New("connection reset"),
			fallback:     "Failed to submit task",
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"Failed to submit task"}`,
		},
		{
			name:         "internal error without fallback",
			err:          errors.New("connection reset"),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"An unexpected error occurred"}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/status/x", nil)

			HandleAPIError(w, r, tc.err, tc.fallback)

			assert.Equal(t, tc.expectedCode, w.Code)
			assert.JSONEq(t, tc.expectedBody, w.Body.String())
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := validator.New().Struct(RecognizeRequest{})
	assert.Equal(t, "Invalid File: required field", SanitizeValidationError(err))

	assert.Equal(t, "Validation error", SanitizeValidationError(errors.New("something else")))
}
