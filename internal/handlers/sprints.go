package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sprintdesk/apiserver/internal/authz"
	"github.com/sprintdesk/apiserver/internal/services"
	"github.com/sprintdesk/apiserver/types"
)

// SprintHandler exposes sprint creation and single-sprint operations.
// Per-project listing lives under the project routes.
type SprintHandler struct {
	projects *services.ProjectService
	sprints  *services.SprintService
	issues   *services.IssueService
	guard    *authz.Guard
}

func NewSprintHandler(projects *services.ProjectService, sprints *services.SprintService, issues *services.IssueService, guard *authz.Guard) *SprintHandler {
	return &SprintHandler{
		projects: projects,
		sprints:  sprints,
		issues:   issues,
		guard:    guard,
	}
}

// SprintRouter registers sprint routes. The caller mounts it behind
// RequireAuth.
func SprintRouter(r chi.Router, projects *services.ProjectService, sprints *services.SprintService, issues *services.IssueService, guard *authz.Guard) {
	handler := NewSprintHandler(projects, sprints, issues, guard)

	r.Post("/", handler.Create)
	r.Get("/{id}", handler.Get)
	r.Put("/{id}", handler.Update)
	r.Delete("/{id}", handler.Delete)
	r.Get("/{id}/issues", handler.ListIssues)
}

func (h *SprintHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req struct {
		ProjectID int `json:"project_id"`
		services.CreateSprintInput
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProjectID < 1 {
		writeError(w, http.StatusBadRequest, "project_id is required")
		return
	}

	if _, err := h.projects.Get(r.Context(), req.ProjectID); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.guard.Project(r.Context(), caller, req.ProjectID, authz.ActionCreate); err != nil {
		writeServiceError(w, err)
		return
	}

	sprint, err := h.sprints.Create(r.Context(), req.ProjectID, req.CreateSprintInput)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sprint)
}

func (h *SprintHandler) loadGuarded(w http.ResponseWriter, r *http.Request, action authz.Action) (types.Sprint, bool) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.Sprint{}, false
	}
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sprint id")
		return types.Sprint{}, false
	}
	sprint, err := h.sprints.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return types.Sprint{}, false
	}
	if err := h.guard.Sprint(r.Context(), caller, sprint, action); err != nil {
		writeServiceError(w, err)
		return types.Sprint{}, false
	}
	return sprint, true
}

func (h *SprintHandler) Get(w http.ResponseWriter, r *http.Request) {
	sprint, ok := h.loadGuarded(w, r, authz.ActionRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sprint)
}

func (h *SprintHandler) Update(w http.ResponseWriter, r *http.Request) {
	sprint, ok := h.loadGuarded(w, r, authz.ActionUpdate)
	if !ok {
		return
	}

	var patch types.SprintPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.sprints.Update(r.Context(), sprint.ID, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes the sprint; its issues return to the backlog.
func (h *SprintHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sprint, ok := h.loadGuarded(w, r, authz.ActionDelete)
	if !ok {
		return
	}
	if err := h.sprints.Delete(r.Context(), sprint.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SprintHandler) ListIssues(w http.ResponseWriter, r *http.Request) {
	sprint, ok := h.loadGuarded(w, r, authz.ActionRead)
	if !ok {
		return
	}
	offset, limit := parsePagination(r)
	issues, err := h.issues.List(r.Context(), nil, &sprint.ID, offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}
