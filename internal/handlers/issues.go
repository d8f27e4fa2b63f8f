package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sprintdesk/apiserver/internal/authz"
	"github.com/sprintdesk/apiserver/internal/services"
	"github.com/sprintdesk/apiserver/types"
)

// IssueHandler exposes issue CRUD and the dedicated status and
// assignment operations. Comments, worklogs, and attachments have
// their own routers keyed by issue.
type IssueHandler struct {
	projects *services.ProjectService
	sprints  *services.SprintService
	issues   *services.IssueService
	guard    *authz.Guard
}

func NewIssueHandler(
	projects *services.ProjectService,
	sprints *services.SprintService,
	issues *services.IssueService,
	guard *authz.Guard,
) *IssueHandler {
	return &IssueHandler{
		projects: projects,
		sprints:  sprints,
		issues:   issues,
		guard:    guard,
	}
}

// IssueRouter registers issue routes. The caller mounts it behind
// RequireAuth.
func IssueRouter(
	r chi.Router,
	projects *services.ProjectService,
	sprints *services.SprintService,
	issues *services.IssueService,
	guard *authz.Guard,
) {
	handler := NewIssueHandler(projects, sprints, issues, guard)

	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Get("/{id}", handler.Get)
	r.Put("/{id}", handler.Update)
	r.Delete("/{id}", handler.Delete)

	r.Patch("/{id}/status", handler.ChangeStatus)
	r.Patch("/{id}/assign-user", handler.AssignUser)
	r.Patch("/{id}/assign-sprint", handler.AssignSprint)
}

// queryIntPtr parses an optional positive integer query parameter.
func queryIntPtr(r *http.Request, name string) (*int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return nil, false
	}
	return &v, true
}

// List returns issues scoped to a project or a sprint. One of the two
// query parameters is mandatory; there is no unfiltered listing.
func (h *IssueHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	projectID, ok := queryIntPtr(r, "project_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid project_id")
		return
	}
	sprintID, ok := queryIntPtr(r, "sprint_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid sprint_id")
		return
	}
	if projectID == nil && sprintID == nil {
		writeError(w, http.StatusBadRequest, "either project_id or sprint_id is required")
		return
	}

	// Scope existence is a 404 concern before any permission check.
	if projectID != nil {
		if _, err := h.projects.Get(r.Context(), *projectID); err != nil {
			writeServiceError(w, err)
			return
		}
		if err := h.guard.Project(r.Context(), caller, *projectID, authz.ActionRead); err != nil {
			writeServiceError(w, err)
			return
		}
	} else {
		sprint, err := h.sprints.Get(r.Context(), *sprintID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if err := h.guard.Sprint(r.Context(), caller, sprint, authz.ActionRead); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	offset, limit := parsePagination(r)
	issues, err := h.issues.List(r.Context(), projectID, sprintID, offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (h *IssueHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var in services.CreateIssueInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if in.ProjectID < 1 {
		writeError(w, http.StatusBadRequest, "project_id is required")
		return
	}

	if _, err := h.projects.Get(r.Context(), in.ProjectID); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.guard.Project(r.Context(), caller, in.ProjectID, authz.ActionCreate); err != nil {
		writeServiceError(w, err)
		return
	}

	issue, err := h.issues.Create(r.Context(), caller.ID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

// loadGuarded fetches the issue and checks the caller against it.
func (h *IssueHandler) loadGuarded(w http.ResponseWriter, r *http.Request, action authz.Action) (types.Issue, bool) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.Issue{}, false
	}
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid issue id")
		return types.Issue{}, false
	}
	issue, err := h.issues.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return types.Issue{}, false
	}
	if err := h.guard.Issue(r.Context(), caller, issue, action); err != nil {
		writeServiceError(w, err)
		return types.Issue{}, false
	}
	return issue, true
}

// loadProjectAuthority is loadGuarded with project-level authority:
// the assignment operations belong to the project owner alone, so the
// reporter/assignee write exception does not apply.
func (h *IssueHandler) loadProjectAuthority(w http.ResponseWriter, r *http.Request, action authz.Action) (types.Issue, bool) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.Issue{}, false
	}
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid issue id")
		return types.Issue{}, false
	}
	issue, err := h.issues.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return types.Issue{}, false
	}
	if err := h.guard.Project(r.Context(), caller, issue.ProjectID, action); err != nil {
		writeServiceError(w, err)
		return types.Issue{}, false
	}
	return issue, true
}

// Get returns the full detail view: the issue plus comments, worklogs,
// attachments, and the live hours total.
func (h *IssueHandler) Get(w http.ResponseWriter, r *http.Request) {
	issue, ok := h.loadGuarded(w, r, authz.ActionRead)
	if !ok {
		return
	}
	details, err := h.issues.Details(r.Context(), issue.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	for i := range details.Attachments {
		details.Attachments[i].DownloadURL = downloadURL(details.Attachments[i].ID)
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *IssueHandler) Update(w http.ResponseWriter, r *http.Request) {
	issue, ok := h.loadGuarded(w, r, authz.ActionUpdate)
	if !ok {
		return
	}

	var patch types.IssuePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.issues.Update(r.Context(), issue.ID, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *IssueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	issue, ok := h.loadGuarded(w, r, authz.ActionDelete)
	if !ok {
		return
	}
	if err := h.issues.Delete(r.Context(), issue.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *IssueHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	issue, ok := h.loadGuarded(w, r, authz.ActionUpdate)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	updated, err := h.issues.ChangeStatus(r.Context(), issue.ID, req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// AssignUser sets or clears the assignee. A null assignee_id
// unassigns.
func (h *IssueHandler) AssignUser(w http.ResponseWriter, r *http.Request) {
	issue, ok := h.loadProjectAuthority(w, r, authz.ActionUpdate)
	if !ok {
		return
	}

	var req struct {
		AssigneeID *int `json:"assignee_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.issues.AssignUser(r.Context(), issue.ID, req.AssigneeID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// AssignSprint moves the issue into a sprint of its own project, or
// back to the backlog on null.
func (h *IssueHandler) AssignSprint(w http.ResponseWriter, r *http.Request) {
	issue, ok := h.loadProjectAuthority(w, r, authz.ActionUpdate)
	if !ok {
		return
	}

	var req struct {
		SprintID *int `json:"sprint_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.issues.AssignSprint(r.Context(), issue.ID, req.SprintID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
