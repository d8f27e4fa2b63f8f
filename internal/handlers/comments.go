package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sprintdesk/apiserver/internal/authz"
	"github.com/sprintdesk/apiserver/internal/services"
	"github.com/sprintdesk/apiserver/types"
)

// CommentHandler exposes comment creation, per-issue listing, and
// single-comment operations.
type CommentHandler struct {
	comments *services.CommentService
	issues   *services.IssueService
	guard    *authz.Guard
}

func NewCommentHandler(comments *services.CommentService, issues *services.IssueService, guard *authz.Guard) *CommentHandler {
	return &CommentHandler{comments: comments, issues: issues, guard: guard}
}

// CommentRouter registers comment routes. The caller mounts it behind
// RequireAuth.
func CommentRouter(r chi.Router, comments *services.CommentService, issues *services.IssueService, guard *authz.Guard) {
	handler := NewCommentHandler(comments, issues, guard)

	r.Post("/", handler.Create)
	r.Get("/by-issue/{issueID}", handler.ListByIssue)
	r.Get("/{id}", handler.Get)
	r.Put("/{id}", handler.Update)
	r.Delete("/{id}", handler.Delete)
}

func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IssueID     int    `json:"issue_id"`
		CommentText string `json:"comment_text"`
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

	comment, err := h.comments.Create(r.Context(), issue.ID, caller.ID, req.CommentText)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *CommentHandler) ListByIssue(w http.ResponseWriter, r *http.Request) {
	issue, _, ok := loadIssueScope(w, r, h.issues, h.guard, authz.ActionRead)
	if !ok {
		return
	}
	offset, limit := parsePagination(r)
	comments, err := h.comments.ListByIssue(r.Context(), issue.ID, offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) loadGuarded(w http.ResponseWriter, r *http.Request, action authz.Action) (types.Comment, bool) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.Comment{}, false
	}
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid comment id")
		return types.Comment{}, false
	}
	comment, err := h.comments.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return types.Comment{}, false
	}
	if err := h.guard.IssueItem(r.Context(), caller, comment.IssueID, comment.UserID, action); err != nil {
		writeServiceError(w, err)
		return types.Comment{}, false
	}
	return comment, true
}

func (h *CommentHandler) Get(w http.ResponseWriter, r *http.Request) {
	comment, ok := h.loadGuarded(w, r, authz.ActionRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// Update replaces the comment text and advances the parent issue's
// updated_date.
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	comment, ok := h.loadGuarded(w, r, authz.ActionUpdate)
	if !ok {
		return
	}

	var req struct {
		CommentText string `json:"comment_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.comments.Update(r.Context(), comment.ID, req.CommentText)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes the comment without touching the parent issue's
// updated_date.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	comment, ok := h.loadGuarded(w, r, authz.ActionDelete)
	if !ok {
		return
	}
	if err := h.comments.Delete(r.Context(), comment.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
