package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sprintdesk/apiserver/internal/authz"
	"github.com/sprintdesk/apiserver/internal/services"
	"github.com/sprintdesk/apiserver/types"
)

// WorklogHandler exposes worklog creation, per-issue listing,
// single-worklog operations, and the hour aggregates.
type WorklogHandler struct {
	worklogs *services.WorklogService
	issues   *services.IssueService
	projects *services.ProjectService
	guard    *authz.Guard
}

func NewWorklogHandler(
	worklogs *services.WorklogService,
	issues *services.IssueService,
	projects *services.ProjectService,
	guard *authz.Guard,
) *WorklogHandler {
	return &WorklogHandler{
		worklogs: worklogs,
		issues:   issues,
		projects: projects,
		guard:    guard,
	}
}

// WorklogRouter registers worklog routes. The caller mounts it behind
// RequireAuth.
func WorklogRouter(
	r chi.Router,
	worklogs *services.WorklogService,
	issues *services.IssueService,
	projects *services.ProjectService,
	guard *authz.Guard,
) {
	handler := NewWorklogHandler(worklogs, issues, projects, guard)

	r.Post("/", handler.Create)
	r.Get("/by-issue/{issueID}", handler.ListByIssue)
	r.Get("/by-issue/{issueID}/total-hours", handler.TotalHoursForIssue)
	r.Get("/by-project/{projectID}/total-hours", handler.TotalHoursForProject)
	r.Get("/by-project/{projectID}/hours-by-user", handler.HoursByUser)
	r.Get("/{id}", handler.Get)
	r.Put("/{id}", handler.Update)
	r.Delete("/{id}", handler.Delete)
}

func (h *WorklogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IssueID int `json:"issue_id"`
		services.CreateWorklogInput
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IssueID < 1 {
		writeError(w, http.StatusBadRequest, "issue_id is required")
		return
	}

	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	issue, err := h.issues.Get(r.Context(), req.IssueID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.guard.IssueItem(r.Context(), caller, issue.ID, nil, authz.ActionCreate); err != nil {
		writeServiceError(w, err)
		return
	}

	worklog, err := h.worklogs.Create(r.Context(), issue.ID, caller.ID, req.CreateWorklogInput)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, worklog)
}

func (h *WorklogHandler) ListByIssue(w http.ResponseWriter, r *http.Request) {
	issue, _, ok := loadIssueScope(w, r, h.issues, h.guard, authz.ActionRead)
	if !ok {
		return
	}
	offset, limit := parsePagination(r)
	worklogs, err := h.worklogs.ListByIssue(r.Context(), issue.ID, offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, worklogs)
}

// TotalHoursForIssue reports the live hour sum for one issue.
func (h *WorklogHandler) TotalHoursForIssue(w http.ResponseWriter, r *http.Request) {
	issue, _, ok := loadIssueScope(w, r, h.issues, h.guard, authz.ActionRead)
	if !ok {
		return
	}
	total, err := h.worklogs.TotalHoursForIssue(r.Context(), issue.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"issue_id":    issue.ID,
		"total_hours": total,
	})
}

// loadProjectScope resolves a /by-project/{projectID} route and gates
// it on project ownership.
func (h *WorklogHandler) loadProjectScope(w http.ResponseWriter, r *http.Request) (types.Project, bool) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.Project{}, false
	}
	projectID, err := urlID(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return types.Project{}, false
	}
	project, err := h.projects.Get(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return types.Project{}, false
	}
	if err := h.guard.Project(r.Context(), caller, project.ID, authz.ActionRead); err != nil {
		writeServiceError(w, err)
		return types.Project{}, false
	}
	return project, true
}

// TotalHoursForProject reports the hour sum across every issue in the
// project.
func (h *WorklogHandler) TotalHoursForProject(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProjectScope(w, r)
	if !ok {
		return
	}
	total, err := h.worklogs.TotalHoursForProject(r.Context(), project.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id":  project.ID,
		"total_hours": total,
	})
}

// HoursByUser reports logged hours per user for a project, busiest
// first.
func (h *WorklogHandler) HoursByUser(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadProjectScope(w, r)
	if !ok {
		return
	}
	report, err := h.worklogs.HoursByUserForProject(r.Context(), project.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *WorklogHandler) loadGuarded(w http.ResponseWriter, r *http.Request, action authz.Action) (types.Worklog, bool) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.Worklog{}, false
	}
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid worklog id")
		return types.Worklog{}, false
	}
	worklog, err := h.worklogs.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return types.Worklog{}, false
	}
	if err := h.guard.IssueItem(r.Context(), caller, worklog.IssueID, worklog.UserID, action); err != nil {
		writeServiceError(w, err)
		return types.Worklog{}, false
	}
	return worklog, true
}

func (h *WorklogHandler) Get(w http.ResponseWriter, r *http.Request) {
	worklog, ok := h.loadGuarded(w, r, authz.ActionRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, worklog)
}

// Update edits a time entry. Unlike creation, edits do not advance the
// parent issue's updated_date.
func (h *WorklogHandler) Update(w http.ResponseWriter, r *http.Request) {
	worklog, ok := h.loadGuarded(w, r, authz.ActionUpdate)
	if !ok {
		return
	}

	var patch types.WorklogPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.worklogs.Update(r.Context(), worklog.ID, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *WorklogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	worklog, ok := h.loadGuarded(w, r, authz.ActionDelete)
	if !ok {
		return
	}
	if err := h.worklogs.Delete(r.Context(), worklog.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
