package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/komorebi/internal/tools"
)

// Handler holds API route handlers.
type Handler struct {
	tools *tools.Server
}

// NewHandler creates a new Handler.
func NewHandler(t *tools.Server) *Handler {
	return &Handler{tools: t}
}

// call runs a tool and writes its result: 200 on success, 422 when the
// tool reports an error, 404 for an unknown tool.
func (h *Handler) call(w http.ResponseWriter, r *http.Request, name string, args map[string]any) {
	res, ok := h.tools.Call(r.Context(), name, args)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tool: "+name)
		return
	}
	status := http.StatusOK
	if res.IsError {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, toResponse(res))
}

// ListProjects handles GET /projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	h.call(w, r, "list_projects", nil)
}

// ShowProject handles GET /projects/{name}.
func (h *Handler) ShowProject(w http.ResponseWriter, r *http.Request) {
	h.call(w, r, "show_project", map[string]any{"name": chi.URLParam(r, "name")})
}

// TodayTasks handles GET /tasks/today.
func (h *Handler) TodayTasks(w http.ResponseWriter, r *http.Request) {
	h.call(w, r, "get_today_tasks", nil)
}

// SearchTasks handles GET /tasks/search?q=&limit=.
func (h *Handler) SearchTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	args := map[string]any{"query": q.Get("q")}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		args["limit"] = n
	}
	h.call(w, r, "search_tasks", args)
}

// CreateReview handles POST /reviews.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	h.call(w, r, "generate_review", map[string]any{
		"period": req.Period,
		"date":   req.Date,
		"notes":  req.Notes,
	})
}

// ListTools handles GET /tools.
func (h *Handler) ListTools(w http.ResponseWriter, _ *http.Request) {
	list := h.tools.Tools()
	out := make([]ToolInfo, 0, len(list))
	for _, t := range list {
		out = append(out, ToolInfo{Name: t.Name, Description: t.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

// CallTool handles POST /tools/{name} with the tool arguments as a JSON
// object body.
func (h *Handler) CallTool(w http.ResponseWriter, r *http.Request) {
	args := map[string]any{}
	if err := decodeBody(w, r, &args); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	h.call(w, r, chi.URLParam(r, "name"), args)
}
