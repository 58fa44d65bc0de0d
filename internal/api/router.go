package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/komorebi/internal/tools"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// events, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(t *tools.Server, authEnabled bool, token string, events http.Handler) chi.Router {
	h := NewHandler(t)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Projects.
	r.Get("/projects", h.ListProjects)
	r.Get("/projects/{name}", h.ShowProject)

	// Tasks.
	r.Get("/tasks/today", h.TodayTasks)
	r.Get("/tasks/search", h.SearchTasks)

	// Reviews.
	r.Post("/reviews", h.CreateReview)

	// Generic tool calls.
	r.Get("/tools", h.ListTools)
	r.Post("/tools/{name}", h.CallTool)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
