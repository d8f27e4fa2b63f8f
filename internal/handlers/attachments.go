package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sprintdesk/apiserver/internal/authz"
	"github.com/sprintdesk/apiserver/internal/services"
	"github.com/sprintdesk/apiserver/types"
)

const maxUploadBytes = 32 << 20

// AttachmentHandler exposes per-issue upload and listing plus
// single-attachment operations, including the blob download.
type AttachmentHandler struct {
	attachments *services.AttachmentService
	issues      *services.IssueService
	guard       *authz.Guard
}

func NewAttachmentHandler(attachments *services.AttachmentService, issues *services.IssueService, guard *authz.Guard) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, issues: issues, guard: guard}
}

// AttachmentRouter registers attachment routes. The caller mounts it
// behind RequireAuth.
func AttachmentRouter(r chi.Router, attachments *services.AttachmentService, issues *services.IssueService, guard *authz.Guard) {
	handler := NewAttachmentHandler(attachments, issues, guard)

	r.Post("/by-issue/{issueID}", handler.Upload)
	r.Get("/by-issue/{issueID}", handler.ListByIssue)
	r.Get("/{id}", handler.Get)
	r.Get("/{id}/download", handler.Download)
	r.Delete("/{id}", handler.Delete)
}

// downloadURL is where a client fetches an attachment's bytes.
func downloadURL(id int) string {
	return "/api/attachments/" + strconv.Itoa(id) + "/download"
}

// Upload accepts a multipart form with a single "file" part.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	issue, caller, ok := loadIssueScope(w, r, h.issues, h.guard, authz.ActionCreate)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	attachment, err := h.attachments.Upload(r.Context(), issue.ID, caller.ID, header.Filename, contentType, header.Size, file)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	attachment.DownloadURL = downloadURL(attachment.ID)
	writeJSON(w, http.StatusCreated, attachment)
}

func (h *AttachmentHandler) ListByIssue(w http.ResponseWriter, r *http.Request) {
	issue, _, ok := loadIssueScope(w, r, h.issues, h.guard, authz.ActionRead)
	if !ok {
		return
	}
	offset, limit := parsePagination(r)
	attachments, err := h.attachments.ListByIssue(r.Context(), issue.ID, offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	for i := range attachments {
		attachments[i].DownloadURL = downloadURL(attachments[i].ID)
	}
	writeJSON(w, http.StatusOK, attachments)
}

func (h *AttachmentHandler) loadGuarded(w http.ResponseWriter, r *http.Request, action authz.Action) (types.Attachment, bool) {
	caller, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return types.Attachment{}, false
	}
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid attachment id")
		return types.Attachment{}, false
	}
	attachment, err := h.attachments.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return types.Attachment{}, false
	}
	if err := h.guard.IssueItem(r.Context(), caller, attachment.IssueID, attachment.UserID, action); err != nil {
		writeServiceError(w, err)
		return types.Attachment{}, false
	}
	return attachment, true
}

func (h *AttachmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	attachment, ok := h.loadGuarded(w, r, authz.ActionRead)
	if !ok {
		return
	}
	attachment.DownloadURL = downloadURL(attachment.ID)
	writeJSON(w, http.StatusOK, attachment)
}

// Download streams the blob with the original filename in the
// Content-Disposition header.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	attachment, ok := h.loadGuarded(w, r, authz.ActionRead)
	if !ok {
		return
	}

	_, rc, err := h.attachments.Open(r.Context(), attachment.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer rc.Close()

	contentType := attachment.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	if attachment.FileSizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(attachment.FileSizeBytes, 10))
	}
	_, _ = io.Copy(w, rc)
}

// Delete removes the record first; the blob follows best-effort.
func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	attachment, ok := h.loadGuarded(w, r, authz.ActionDelete)
	if !ok {
		return
	}
	if err := h.attachments.Delete(r.Context(), attachment.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
