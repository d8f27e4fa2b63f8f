package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sprintdesk/apiserver/internal/authz"
	"github.com/sprintdesk/apiserver/internal/services"
	"github.com/sprintdesk/apiserver/types"
)

// ProjectHandler exposes project CRUD plus the nested sprint and
// issue routes scoped to a project.
type ProjectHandler struct {
	projects *services.ProjectService
	sprints  *services.SprintService
	issues   *services.IssueService
	guard    *authz.Guard
}

func NewProjectHandler(
	projects *services.ProjectService,
	sprints *services.SprintService,
	issues *services.IssueService,
	guard *authz.Guard,
) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		sprints:  sprints,
		issues:   issues,
		guard:    guard,
	}
}

// ProjectRouter registers project routes. The caller mounts it behind
// RequireAuth.
func ProjectRouter(
	r chi.Router,
	projects *services.ProjectService,
	sprints *services.SprintService,
	issues *services.IssueService,
	guard *authz.Guard,
) {
	handler := NewProjectHandler(projects, sprints, issues, guard)

	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Get("/{id}", handler.Get)
	r.Put("/{id}", handler.Update)
	r.Delete("/{id}", handler.Delete)

	r.Get("/{id}/sprints", handler.ListSprints)
	r.Post("/{id}/sprints", handler.CreateSprint)
	r.Get("/{id}/issues", handler.ListIssues)
}

// List is visible to every authenticated user; per-project reads are
// owner-gated.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	offset, limit := parsePagination(r)
	projects, err := h.projects.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var in services.CreateProjectInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project, err := h.projects.Create(r.Context(), caller.ID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// loadGuarded fetches the project and checks the caller against it.
// Missing projects are 404 before any permission check runs.
func (h *ProjectHandler) loadGuarded(w http.ResponseWriter, r *http.Request, action authz.Action) (types.Project, bool) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.Project{}, false
	}
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return types.Project{}, false
	}
	project, err := h.projects.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return types.Project{}, false
	}
	if err := h.guard.Project(r.Context(), caller, project.ID, action); err != nil {
		writeServiceError(w, err)
		return types.Project{}, false
	}
	return project, true
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadGuarded(w, r, authz.ActionRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadGuarded(w, r, authz.ActionUpdate)
	if !ok {
		return
	}

	var patch types.ProjectPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.projects.Update(r.Context(), project.ID, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadGuarded(w, r, authz.ActionDelete)
	if !ok {
		return
	}
	if err := h.projects.Delete(r.Context(), project.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProjectHandler) ListSprints(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadGuarded(w, r, authz.ActionRead)
	if !ok {
		return
	}
	offset, limit := parsePagination(r)
	sprints, err := h.sprints.ListByProject(r.Context(), project.ID, offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sprints)
}

func (h *ProjectHandler) CreateSprint(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadGuarded(w, r, authz.ActionCreate)
	if !ok {
		return
	}

	var in services.CreateSprintInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sprint, err := h.sprints.Create(r.Context(), project.ID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sprint)
}

func (h *ProjectHandler) ListIssues(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadGuarded(w, r, authz.ActionRead)
	if !ok {
		return
	}
	offset, limit := parsePagination(r)
	issues, err := h.issues.List(r.Context(), &project.ID, nil, offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}
