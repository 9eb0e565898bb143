package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Pages of the last build.
	r.Get("/pages", h.ListPages)
	r.Get("/pages/{title}", h.GetPage)
	r.Get("/backlinks/{title}", h.GetBacklinks)

	// Search.
	r.Get("/search", h.Search)

	// Builds.
	r.Get("/builds/last", h.LastBuild)
	r.Post("/build", h.Build)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
