package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// NewRouter wires the marker query routes and the rate-limited
// registration endpoint.
func NewRouter(h *Handlers, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(log))
	r.Use(Logging(log))
	r.Use(Metrics())
	r.Use(CORS())

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/markers", func(r chi.Router) {
			r.Get("/public", h.ListPublic)
			r.Get("/search", h.Search)
			r.Get("/nearby", h.Nearby)
			r.Get("/viewport", h.Viewport)
			r.Post("/", h.CreateMarker)
		})
		r.Post("/register", h.Register)
	})

	return r
}
