package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sprintdesk/apiserver/internal/services"
	"github.com/sprintdesk/apiserver/types"
)

// UserHandler exposes account reads and self-service profile updates.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UserRouter registers user routes. The caller mounts it behind
// RequireAuth.
func UserRouter(r chi.Router, users *services.UserService) {
	handler := NewUserHandler(users)

	r.Get("/", handler.List)
	r.Get("/me", handler.Me)
	r.Put("/me", handler.UpdateMe)
	r.Get("/{id}", handler.Get)
	r.Delete("/{id}", handler.Delete)
}

// List is admin-only.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !caller.IsAdmin() {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	offset, limit := parsePagination(r)
	users, err := h.users.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// Me returns the account behind the presented token.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateMe applies a partial profile update to the caller's own
// account.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var patch types.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), user.ID, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Get returns a user record. Users may read themselves; admins may
// read anyone.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if !caller.IsAdmin() && caller.ID != id {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Delete removes an account. Users may delete themselves; admins may
// delete anyone.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if !caller.IsAdmin() && caller.ID != id {
		writeError(w, http.StatusForbidden, "permission denied")
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
