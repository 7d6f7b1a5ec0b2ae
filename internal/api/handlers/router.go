package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-insights/internal/api/middleware"
	"github.com/dvloznov/finance-insights/internal/auth"
)

// NewRouter builds the HTTP handler: the middleware chain, /health and the
// authenticated /api routes.
func NewRouter(svc Insights, authn auth.Authenticator, corsOrigins []string, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(corsOrigins))

	r.Get("/health", Health)

	h := NewInsightsHandler(svc, log)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(authn))
		h.Routes(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}
