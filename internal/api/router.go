package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	apimiddleware "github.com/phrazzld/asrq/internal/api/middleware"
	"github.com/phrazzld/asrq/internal/api/shared"
	"github.com/phrazzld/asrq/internal/service"
	"github.com/phrazzld/asrq/internal/service/auth"
)

// VersionPrefix mounts a second copy of the routes for versioned clients.
const VersionPrefix = "/api/v1"

// NewRouter builds the HTTP handler for the job API. When jwtService is nil
// the task routes are served without authentication; /health is always open.
func NewRouter(jobService service.JobService, jwtService auth.JWTService, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.NewTraceMiddleware(logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithError(w, r, http.StatusNotFound, "Not found")
	})

	handler := NewJobHandler(jobService, logger)

	routes := func(r chi.Router) {
		r.Get("/health", handler.Health)

		r.Group(func(r chi.Router) {
			if jwtService != nil {
				r.Use(apimiddleware.NewAuthMiddleware(jwtService).Authenticate)
			}
			r.Post("/recognize", handler.Recognize)
			r.Get("/status/{"+TaskIDParam+"}", handler.GetStatus)
		})
	}

	routes(r)
	r.Route(VersionPrefix, routes)

	return r
}
