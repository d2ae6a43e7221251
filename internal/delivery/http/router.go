package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the roster API. Everything under /api/v1 requires a
// bearer token from the identity service.
func NewRouter(h *HTTPHandler, jwtSecret string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HealthCheck)

	r.Route("/api/v1/games/{gameId}", func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Post("/join", h.JoinGame)
		r.Post("/leave", h.LeaveGame)
		r.Post("/confirm", h.ConfirmAttendance)
		r.Get("/roster", h.GetRoster)
		r.Post("/roster/refresh", h.RefreshRoster)
	})

	return r
}
