package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sprintdesk/apiserver/internal/authz"
	"github.com/sprintdesk/apiserver/internal/services"
	"github.com/sprintdesk/apiserver/internal/store"
	"github.com/sprintdesk/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func userFromContext(ctx context.Context) (types.User, error) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok || user.ID < 1 {
		return types.User{}, errors.New("missing authenticated user")
	}
	return user, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps the error taxonomy of the lower layers onto
// HTTP statuses. Everything unrecognized is a 500 with a generic body.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, authz.ErrForbidden):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusBadRequest, "already exists")
	case errors.Is(err, store.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrInconsistent):
		writeError(w, http.StatusInternalServerError, "inconsistent data")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// urlID parses a positive integer path parameter.
func urlID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// loadIssueScope resolves the issue named by a /by-issue/{issueID}
// route and runs the issue-item guard for the caller. A missing issue
// is a 404 here, unlike the dangling references inside the guard.
func loadIssueScope(w http.ResponseWriter, r *http.Request, issues *services.IssueService, guard *authz.Guard, action authz.Action) (types.Issue, types.User, bool) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.Issue{}, types.User{}, false
	}
	issueID, err := urlID(r, "issueID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid issue id")
		return types.Issue{}, types.User{}, false
	}
	issue, err := issues.Get(r.Context(), issueID)
	if err != nil {
		writeServiceError(w, err)
		return types.Issue{}, types.User{}, false
	}
	if err := guard.IssueItem(r.Context(), caller, issue.ID, nil, action); err != nil {
		writeServiceError(w, err)
		return types.Issue{}, types.User{}, false
	}
	return issue, caller, true
}

const defaultPageLimit = 100

// parsePagination reads skip/limit query parameters. Negative or
// malformed values fall back to the defaults.
func parsePagination(r *http.Request) (offset, limit int) {
	offset, limit = 0, defaultPageLimit
	if raw := r.URL.Query().Get("skip"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			limit = v
		}
	}
	return offset, limit
}
