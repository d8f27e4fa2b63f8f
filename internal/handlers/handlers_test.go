package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sprintdesk/apiserver/internal/authz"
	"github.com/sprintdesk/apiserver/internal/services"
	"github.com/sprintdesk/apiserver/internal/storage"
	"github.com/sprintdesk/apiserver/internal/store"
	"github.com/sprintdesk/apiserver/types"
)

// In-memory repositories backing the full handler stack.

type memUserRepo struct {
	users  map[int]types.User
	nextID int
}

func (m *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	u, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) List(_ context.Context, offset, limit int) ([]types.User, error) {
	out := make([]types.User, 0)
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUserRepo) Create(_ context.Context, u types.User) (types.User, error) {
	for _, e := range m.users {
		if e.Username == u.Username || e.Email == u.Email {
			return types.User{}, store.ErrConflict
		}
	}
	u.ID = m.nextID
	m.nextID++
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.users[u.ID] = u
	return u, nil
}

func (m *memUserRepo) UpdateProfile(_ context.Context, id int, patch types.UserPatch) (types.User, error) {
	u, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		u.Phone = *patch.Phone
	}
	m.users[id] = u
	return u, nil
}

func (m *memUserRepo) Delete(_ context.Context, id int) error {
	if _, ok := m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

type memProjectRepo struct {
	projects map[int]types.Project
	nextID   int
}

func (m *memProjectRepo) GetByID(_ context.Context, id int) (types.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	return p, nil
}

func (m *memProjectRepo) GetByKey(_ context.Context, key string) (types.Project, error) {
	for _, p := range m.projects {
		if p.ProjectKey == key {
			return p, nil
		}
	}
	return types.Project{}, store.ErrNotFound
}

func (m *memProjectRepo) List(_ context.Context, offset, limit int) ([]types.Project, error) {
	out := make([]types.Project, 0)
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProjectRepo) Create(_ context.Context, p types.Project) (types.Project, error) {
	for _, e := range m.projects {
		if e.ProjectKey == p.ProjectKey {
			return types.Project{}, store.ErrConflict
		}
	}
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.projects[p.ID] = p
	return p, nil
}

func (m *memProjectRepo) Update(_ context.Context, id int, patch types.ProjectPatch) (types.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	if patch.ProjectName != nil {
		p.ProjectName = *patch.ProjectName
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.StartDate != nil {
		p.StartDate = patch.StartDate
	}
	if patch.EndDate != nil {
		p.EndDate = patch.EndDate
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.OwnerID != nil {
		p.OwnerID = *patch.OwnerID
	}
	m.projects[id] = p
	return p, nil
}

func (m *memProjectRepo) Delete(_ context.Context, id int) error {
	if _, ok := m.projects[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

type memSprintRepo struct {
	sprints map[int]types.Sprint
	nextID  int
}

func (m *memSprintRepo) GetByID(_ context.Context, id int) (types.Sprint, error) {
	s, ok := m.sprints[id]
	if !ok {
		return types.Sprint{}, store.ErrNotFound
	}
	return s, nil
}

func (m *memSprintRepo) ListByProject(_ context.Context, projectID, offset, limit int) ([]types.Sprint, error) {
	out := make([]types.Sprint, 0)
	for _, s := range m.sprints {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSprintRepo) Create(_ context.Context, s types.Sprint) (types.Sprint, error) {
	s.ID = m.nextID
	m.nextID++
	m.sprints[s.ID] = s
	return s, nil
}

func (m *memSprintRepo) Update(_ context.Context, id int, patch types.SprintPatch) (types.Sprint, error) {
	s, ok := m.sprints[id]
	if !ok {
		return types.Sprint{}, store.ErrNotFound
	}
	if patch.SprintName != nil {
		s.SprintName = *patch.SprintName
	}
	if patch.Goal != nil {
		s.Goal = *patch.Goal
	}
	if patch.Status != nil {
		s.Status = *patch.Status
	}
	m.sprints[id] = s
	return s, nil
}

func (m *memSprintRepo) Delete(_ context.Context, id int) error {
	if _, ok := m.sprints[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.sprints, id)
	return nil
}

type memIssueRepo struct {
	issues map[int]types.Issue
	nextID int
}

func (m *memIssueRepo) GetByID(_ context.Context, id int) (types.Issue, error) {
	i, ok := m.issues[id]
	if !ok {
		return types.Issue{}, store.ErrNotFound
	}
	return i, nil
}

func (m *memIssueRepo) ListByProject(_ context.Context, projectID, offset, limit int) ([]types.Issue, error) {
	out := make([]types.Issue, 0)
	for _, i := range m.issues {
		if i.ProjectID == projectID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *memIssueRepo) ListBySprint(_ context.Context, sprintID, offset, limit int) ([]types.Issue, error) {
	out := make([]types.Issue, 0)
	for _, i := range m.issues {
		if i.SprintID != nil && *i.SprintID == sprintID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *memIssueRepo) Create(_ context.Context, i types.Issue) (types.Issue, error) {
	i.ID = m.nextID
	m.nextID++
	i.CreatedDate = time.Now()
	i.UpdatedDate = i.CreatedDate
	m.issues[i.ID] = i
	return i, nil
}

func (m *memIssueRepo) Update(_ context.Context, id int, patch types.IssuePatch) (types.Issue, error) {
	i, ok := m.issues[id]
	if !ok {
		return types.Issue{}, store.ErrNotFound
	}
	if patch.Description != nil {
		i.Description = *patch.Description
	}
	if patch.IssueType != nil {
		i.IssueType = *patch.IssueType
	}
	if patch.Priority != nil {
		i.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		i.DueDate = patch.DueDate
	}
	if patch.StoryPoints != nil {
		i.StoryPoints = patch.StoryPoints
	}
	if patch.ParentIssueID != nil {
		i.ParentIssueID = patch.ParentIssueID
	}
	i.UpdatedDate = time.Now()
	m.issues[id] = i
	return i, nil
}

func (m *memIssueRepo) UpdateStatus(_ context.Context, id int, status string) (types.Issue, error) {
	i, ok := m.issues[id]
	if !ok {
		return types.Issue{}, store.ErrNotFound
	}
	i.Status = status
	i.UpdatedDate = time.Now()
	m.issues[id] = i
	return i, nil
}

func (m *memIssueRepo) AssignUser(_ context.Context, id int, assigneeID *int) (types.Issue, error) {
	i, ok := m.issues[id]
	if !ok {
		return types.Issue{}, store.ErrNotFound
	}
	i.AssigneeID = assigneeID
	m.issues[id] = i
	return i, nil
}

func (m *memIssueRepo) AssignSprint(_ context.Context, id int, sprintID *int) (types.Issue, error) {
	i, ok := m.issues[id]
	if !ok {
		return types.Issue{}, store.ErrNotFound
	}
	i.SprintID = sprintID
	m.issues[id] = i
	return i, nil
}

func (m *memIssueRepo) Delete(_ context.Context, id int) error {
	if _, ok := m.issues[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.issues, id)
	return nil
}

type memCommentRepo struct {
	comments map[int]types.Comment
	nextID   int
}

func (m *memCommentRepo) GetByID(_ context.Context, id int) (types.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return types.Comment{}, store.ErrNotFound
	}
	return c, nil
}

func (m *memCommentRepo) ListByIssue(_ context.Context, issueID, offset, limit int) ([]types.Comment, error) {
	out := make([]types.Comment, 0)
	for _, c := range m.comments {
		if c.IssueID == issueID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCommentRepo) Create(_ context.Context, c types.Comment) (types.Comment, error) {
	c.ID = m.nextID
	m.nextID++
	c.CreatedAt = time.Now()
	m.comments[c.ID] = c
	return c, nil
}

func (m *memCommentRepo) Update(_ context.Context, id int, text string) (types.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return types.Comment{}, store.ErrNotFound
	}
	c.CommentText = text
	now := time.Now()
	c.UpdatedAt = &now
	m.comments[id] = c
	return c, nil
}

func (m *memCommentRepo) Delete(_ context.Context, id int) error {
	if _, ok := m.comments[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.comments, id)
	return nil
}

type memWorklogRepo struct {
	worklogs map[int]types.Worklog
	nextID   int
}

func (m *memWorklogRepo) GetByID(_ context.Context, id int) (types.Worklog, error) {
	w, ok := m.worklogs[id]
	if !ok {
		return types.Worklog{}, store.ErrNotFound
	}
	return w, nil
}

func (m *memWorklogRepo) ListByIssue(_ context.Context, issueID, offset, limit int) ([]types.Worklog, error) {
	out := make([]types.Worklog, 0)
	for _, w := range m.worklogs {
		if w.IssueID == issueID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memWorklogRepo) Create(_ context.Context, w types.Worklog) (types.Worklog, error) {
	w.ID = m.nextID
	m.nextID++
	w.CreatedAt = time.Now()
	m.worklogs[w.ID] = w
	return w, nil
}

func (m *memWorklogRepo) Update(_ context.Context, id int, patch types.WorklogPatch) (types.Worklog, error) {
	w, ok := m.worklogs[id]
	if !ok {
		return types.Worklog{}, store.ErrNotFound
	}
	if patch.HoursLogged != nil {
		w.HoursLogged = *patch.HoursLogged
	}
	if patch.WorkDate != nil {
		w.WorkDate = *patch.WorkDate
	}
	if patch.Description != nil {
		w.Description = *patch.Description
	}
	m.worklogs[id] = w
	return w, nil
}

func (m *memWorklogRepo) Delete(_ context.Context, id int) error {
	if _, ok := m.worklogs[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.worklogs, id)
	return nil
}

func (m *memWorklogRepo) TotalHoursForIssue(_ context.Context, issueID int) (float64, error) {
	var total float64
	for _, w := range m.worklogs {
		if w.IssueID == issueID {
			total += w.HoursLogged
		}
	}
	return total, nil
}

func (m *memWorklogRepo) TotalHoursForProject(_ context.Context, projectID int) (float64, error) {
	return 0, nil
}

func (m *memWorklogRepo) HoursByUserForProject(_ context.Context, projectID int) ([]types.UserHours, error) {
	return []types.UserHours{}, nil
}

type memAttachmentRepo struct {
	attachments map[int]types.Attachment
	nextID      int
}

func (m *memAttachmentRepo) GetByID(_ context.Context, id int) (types.Attachment, error) {
	a, ok := m.attachments[id]
	if !ok {
		return types.Attachment{}, store.ErrNotFound
	}
	return a, nil
}

func (m *memAttachmentRepo) ListByIssue(_ context.Context, issueID, offset, limit int) ([]types.Attachment, error) {
	out := make([]types.Attachment, 0)
	for _, a := range m.attachments {
		if a.IssueID == issueID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAttachmentRepo) Create(_ context.Context, a types.Attachment) (types.Attachment, error) {
	a.ID = m.nextID
	m.nextID++
	a.UploadedAt = time.Now()
	m.attachments[a.ID] = a
	return a, nil
}

func (m *memAttachmentRepo) Delete(_ context.Context, id int) error {
	if _, ok := m.attachments[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.attachments, id)
	return nil
}

// testServer bundles the router with handles the tests poke directly.
type testServer struct {
	router *chi.Mux
	users  *memUserRepo
	auth   *services.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	userRepo := &memUserRepo{users: map[int]types.User{}, nextID: 1}
	projectRepo := &memProjectRepo{projects: map[int]types.Project{}, nextID: 1}
	sprintRepo := &memSprintRepo{sprints: map[int]types.Sprint{}, nextID: 1}
	issueRepo := &memIssueRepo{issues: map[int]types.Issue{}, nextID: 1}
	commentRepo := &memCommentRepo{comments: map[int]types.Comment{}, nextID: 1}
	worklogRepo := &memWorklogRepo{worklogs: map[int]types.Worklog{}, nextID: 1}
	attachmentRepo := &memAttachmentRepo{attachments: map[int]types.Attachment{}, nextID: 1}

	backend, err := storage.NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("local backend: %v", err)
	}
	blobs := storage.NewStorage(backend)

	authService := services.NewAuthService(userRepo, "test-secret", 30*time.Minute)
	userService := services.NewUserService(userRepo)
	projectService := services.NewProjectService(projectRepo)
	sprintService := services.NewSprintService(sprintRepo)
	issueService := services.NewIssueService(issueRepo, sprintRepo, userRepo, commentRepo, worklogRepo, attachmentRepo)
	commentService := services.NewCommentService(commentRepo)
	worklogService := services.NewWorklogService(worklogRepo)
	attachmentService := services.NewAttachmentService(attachmentRepo, blobs)

	guard := authz.NewGuard(projectRepo, issueRepo)
	requireAuth := RequireAuth(authService)

	router := chi.NewRouter()
	router.Get("/", Root)
	router.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(r chi.Router) {
			AuthRouter(r, authService)
		})
		api.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			UserRouter(r, userService)
		})
		api.Route("/projects", func(r chi.Router) {
			r.Use(requireAuth)
			ProjectRouter(r, projectService, sprintService, issueService, guard)
		})
		api.Route("/sprints", func(r chi.Router) {
			r.Use(requireAuth)
			SprintRouter(r, projectService, sprintService, issueService, guard)
		})
		api.Route("/issues", func(r chi.Router) {
			r.Use(requireAuth)
			IssueRouter(r, projectService, sprintService, issueService, guard)
		})
		api.Route("/comments", func(r chi.Router) {
			r.Use(requireAuth)
			CommentRouter(r, commentService, issueService, guard)
		})
		api.Route("/worklogs", func(r chi.Router) {
			r.Use(requireAuth)
			WorklogRouter(r, worklogService, issueService, projectService, guard)
		})
		api.Route("/attachments", func(r chi.Router) {
			r.Use(requireAuth)
			AttachmentRouter(r, attachmentService, issueService, guard)
		})
	})

	return &testServer{router: router, users: userRepo, auth: authService}
}

// signup registers a user and returns a valid bearer token for them.
func (ts *testServer) signup(t *testing.T, username string, admin bool) string {
	t.Helper()
	user, err := ts.auth.Register(context.Background(), services.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	if admin {
		u := ts.users.users[user.ID]
		u.Role = types.RoleAdmin
		ts.users.users[user.ID] = u
		user = u
	}
	token, err := ts.auth.IssueToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func (ts *testServer) createProject(t *testing.T, token, key string) types.Project {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/projects", token, map[string]string{
		"project_key":  key,
		"project_name": "Project " + key,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project: status %d body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[types.Project](t, rec)
}

func (ts *testServer) createIssue(t *testing.T, token string, projectID int) types.Issue {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/issues", token, map[string]any{
		"project_id":  projectID,
		"description": "something to do",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create issue: status %d body %s", rec.Code, rec.Body.String())
	}
	return decodeBody[types.Issue](t, rec)
}

func TestRegisterAndTokenFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}

	// Duplicate registration is a 400, not a 500.
	rec = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "password123",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: status %d", rec.Code)
	}

	// The token endpoint takes form-encoded credentials.
	form := url.Values{"username": {"alice"}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokenRec := httptest.NewRecorder()
	ts.router.ServeHTTP(tokenRec, req)
	if tokenRec.Code != http.StatusOK {
		t.Fatalf("token: status %d body %s", tokenRec.Code, tokenRec.Body.String())
	}
	tokenResp := decodeBody[TokenResponse](t, tokenRec)
	if tokenResp.TokenType != "bearer" || tokenResp.AccessToken == "" {
		t.Fatalf("token response = %+v", tokenResp)
	}

	rec = ts.do(t, http.MethodGet, "/api/auth/users/me", tokenResp.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status %d", rec.Code)
	}
	me := decodeBody[types.User](t, rec)
	if me.Username != "alice" {
		t.Fatalf("me.username = %q", me.Username)
	}

	rec = ts.do(t, http.MethodGet, "/api/auth/users/me", "garbage-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", rec.Code)
	}
	rec = ts.do(t, http.MethodGet, "/api/auth/users/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", rec.Code)
	}
}

func TestWrongPasswordIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "alice", false)

	form := url.Values{"username": {"alice"}, "password": {"not-the-password"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestProjectOwnershipGate(t *testing.T) {
	ts := newTestServer(t)
	ownerToken := ts.signup(t, "owner", false)
	strangerToken := ts.signup(t, "stranger", false)
	adminToken := ts.signup(t, "root", true)

	project := ts.createProject(t, ownerToken, "PROJ")
	path := fmt.Sprintf("/api/projects/%d", project.ID)

	// Listing is open to every authenticated user.
	if rec := ts.do(t, http.MethodGet, "/api/projects", strangerToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("list as stranger: status %d", rec.Code)
	}

	if rec := ts.do(t, http.MethodGet, path, ownerToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("get as owner: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, path, strangerToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("get as stranger: status %d, want 403", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, path, adminToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("get as admin: status %d", rec.Code)
	}

	if rec := ts.do(t, http.MethodDelete, path, strangerToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("delete as stranger: status %d, want 403", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/projects/9999", ownerToken, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing project: status %d, want 404", rec.Code)
	}
}

func (ts *testServer) userID(t *testing.T, username string) int {
	t.Helper()
	for _, u := range ts.users.users {
		if u.Username == username {
			return u.ID
		}
	}
	t.Fatalf("user %s not registered", username)
	return 0
}

func TestUserRecordIsSelfOrAdmin(t *testing.T) {
	ts := newTestServer(t)
	aliceToken := ts.signup(t, "alice", false)
	bobToken := ts.signup(t, "bob", false)
	adminToken := ts.signup(t, "root", true)

	alicePath := fmt.Sprintf("/api/users/%d", ts.userID(t, "alice"))

	if rec := ts.do(t, http.MethodGet, alicePath, bobToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("other user's record: status %d, want 403", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, alicePath, aliceToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("own record: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, alicePath, adminToken, nil); rec.Code != http.StatusOK {
		t.Fatalf("record as admin: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/users", bobToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("user list as non-admin: status %d, want 403", rec.Code)
	}
}

func TestIssueReadIsOwnerOnly(t *testing.T) {
	ts := newTestServer(t)
	ownerToken := ts.signup(t, "owner", false)
	memberToken := ts.signup(t, "member", false)

	project := ts.createProject(t, ownerToken, "PROJ")
	issue := ts.createIssue(t, ownerToken, project.ID)
	issuePath := fmt.Sprintf("/api/issues/%d", issue.ID)
	assignPath := issuePath + "/assign-user"

	memberID := ts.userID(t, "member")
	if rec := ts.do(t, http.MethodPatch, assignPath, ownerToken, map[string]int{"assignee_id": memberID}); rec.Code != http.StatusOK {
		t.Fatalf("owner assigns: status %d body %s", rec.Code, rec.Body.String())
	}

	// The assignee may edit the issue but not read it; only project
	// ownership grants reads.
	if rec := ts.do(t, http.MethodPut, issuePath, memberToken, map[string]string{"description": "refined"}); rec.Code != http.StatusOK {
		t.Fatalf("assignee edit: status %d body %s", rec.Code, rec.Body.String())
	}
	if rec := ts.do(t, http.MethodGet, issuePath, memberToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("assignee read: status %d, want 403", rec.Code)
	}

	// Assignments are project-owner operations; being the assignee is
	// not enough.
	if rec := ts.do(t, http.MethodPatch, assignPath, memberToken, map[string]any{"assignee_id": nil}); rec.Code != http.StatusForbidden {
		t.Fatalf("assignee reassigns: status %d, want 403", rec.Code)
	}
	if rec := ts.do(t, http.MethodPatch, issuePath+"/assign-sprint", memberToken, map[string]any{"sprint_id": nil}); rec.Code != http.StatusForbidden {
		t.Fatalf("assignee moves sprint: status %d, want 403", rec.Code)
	}
}

func TestIssueListRequiresScope(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "owner", false)
	project := ts.createProject(t, token, "PROJ")
	ts.createIssue(t, token, project.ID)

	if rec := ts.do(t, http.MethodGet, "/api/issues", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("unscoped list: status %d, want 400", rec.Code)
	}

	rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/issues?project_id=%d", project.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("scoped list: status %d body %s", rec.Code, rec.Body.String())
	}
	issues := decodeBody[[]types.Issue](t, rec)
	if len(issues) != 1 {
		t.Fatalf("issues = %d, want 1", len(issues))
	}

	if rec := ts.do(t, http.MethodGet, "/api/issues?project_id=9999", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing scope: status %d, want 404", rec.Code)
	}
}

func TestIssueStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "owner", false)
	project := ts.createProject(t, token, "PROJ")
	issue := ts.createIssue(t, token, project.ID)
	path := fmt.Sprintf("/api/issues/%d/status", issue.ID)

	if rec := ts.do(t, http.MethodPatch, path, token, map[string]string{"status": "Done"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("skipping columns: status %d, want 400", rec.Code)
	}

	rec := ts.do(t, http.MethodPatch, path, token, map[string]string{"status": "In Progress"})
	if rec.Code != http.StatusOK {
		t.Fatalf("valid move: status %d body %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[types.Issue](t, rec)
	if updated.Status != types.StatusInProgress {
		t.Fatalf("status = %q, want In Progress", updated.Status)
	}
}

func TestCommentAuthorAndOwnerRules(t *testing.T) {
	ts := newTestServer(t)
	ownerToken := ts.signup(t, "owner", false)
	strangerToken := ts.signup(t, "stranger", false)

	project := ts.createProject(t, ownerToken, "PROJ")
	issue := ts.createIssue(t, ownerToken, project.ID)

	if rec := ts.do(t, http.MethodPost, "/api/comments", strangerToken, map[string]any{
		"issue_id":     issue.ID,
		"comment_text": "hi",
	}); rec.Code != http.StatusForbidden {
		t.Fatalf("stranger comment: status %d, want 403", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/comments", ownerToken, map[string]any{
		"issue_id":     issue.ID,
		"comment_text": "first",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("owner comment: status %d body %s", rec.Code, rec.Body.String())
	}
	comment := decodeBody[types.Comment](t, rec)
	commentPath := fmt.Sprintf("/api/comments/%d", comment.ID)

	if rec := ts.do(t, http.MethodPost, "/api/comments", ownerToken, map[string]any{
		"issue_id":     issue.ID,
		"comment_text": "   ",
	}); rec.Code != http.StatusBadRequest {
		t.Fatalf("blank comment: status %d, want 400", rec.Code)
	}

	listRec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/comments/by-issue/%d", issue.ID), ownerToken, nil)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list comments: status %d", listRec.Code)
	}
	if comments := decodeBody[[]types.Comment](t, listRec); len(comments) != 1 {
		t.Fatalf("comments = %d, want 1", len(comments))
	}

	rec = ts.do(t, http.MethodPut, commentPath, ownerToken, map[string]string{"comment_text": "edited"})
	if rec.Code != http.StatusOK {
		t.Fatalf("author edit: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, commentPath, strangerToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("stranger delete: status %d, want 403", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, commentPath, ownerToken, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("owner delete: status %d, want 204", rec.Code)
	}
}

func TestWorklogValidationThroughAPI(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "owner", false)
	project := ts.createProject(t, token, "PROJ")
	issue := ts.createIssue(t, token, project.ID)

	if rec := ts.do(t, http.MethodPost, "/api/worklogs", token, map[string]any{
		"issue_id":     issue.ID,
		"hours_logged": -1,
		"work_date":    "2026-03-14T00:00:00Z",
	}); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative hours: status %d, want 400", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/worklogs", token, map[string]any{
		"issue_id":     issue.ID,
		"hours_logged": 2.252,
		"work_date":    "2026-03-14T00:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create worklog: status %d body %s", rec.Code, rec.Body.String())
	}
	worklog := decodeBody[types.Worklog](t, rec)
	if worklog.HoursLogged != 2.25 {
		t.Fatalf("hours = %v, want 2.25 (rounded)", worklog.HoursLogged)
	}

	totalRec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/worklogs/by-issue/%d/total-hours", issue.ID), token, nil)
	if totalRec.Code != http.StatusOK {
		t.Fatalf("total: status %d", totalRec.Code)
	}
	total := decodeBody[map[string]any](t, totalRec)
	if total["total_hours"].(float64) != 2.25 {
		t.Fatalf("total_hours = %v, want 2.25", total["total_hours"])
	}
}

func TestAttachmentUploadDownloadDelete(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "owner", false)
	project := ts.createProject(t, token, "PROJ")
	issue := ts.createIssue(t, token, project.ID)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write([]byte("attachment contents")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/attachments/by-issue/%d", issue.ID), &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: status %d body %s", rec.Code, rec.Body.String())
	}
	attachment := decodeBody[types.Attachment](t, rec)
	if attachment.FileName != "notes.txt" {
		t.Errorf("file_name = %q", attachment.FileName)
	}
	if attachment.DownloadURL == "" {
		t.Error("download_url missing from upload response")
	}

	dlRec := ts.do(t, http.MethodGet, attachment.DownloadURL, token, nil)
	if dlRec.Code != http.StatusOK {
		t.Fatalf("download: status %d", dlRec.Code)
	}
	if dlRec.Body.String() != "attachment contents" {
		t.Fatalf("download body = %q", dlRec.Body.String())
	}
	if cd := dlRec.Header().Get("Content-Disposition"); !strings.Contains(cd, "notes.txt") {
		t.Fatalf("content-disposition = %q", cd)
	}

	delPath := fmt.Sprintf("/api/attachments/%d", attachment.ID)
	if rec := ts.do(t, http.MethodDelete, delPath, token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, delPath, token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d, want 404", rec.Code)
	}
}

func TestIssueDetailsView(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "owner", false)
	project := ts.createProject(t, token, "PROJ")
	issue := ts.createIssue(t, token, project.ID)

	ts.do(t, http.MethodPost, "/api/comments", token, map[string]any{
		"issue_id":     issue.ID,
		"comment_text": "hi",
	})
	ts.do(t, http.MethodPost, "/api/worklogs", token, map[string]any{
		"issue_id":     issue.ID,
		"hours_logged": 1.5,
		"work_date":    "2026-03-14T00:00:00Z",
	})

	rec := ts.do(t, http.MethodGet, fmt.Sprintf("/api/issues/%d", issue.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("details: status %d body %s", rec.Code, rec.Body.String())
	}
	details := decodeBody[types.IssueDetails](t, rec)
	if len(details.Comments) != 1 || len(details.Worklogs) != 1 {
		t.Fatalf("details = %d comments, %d worklogs", len(details.Comments), len(details.Worklogs))
	}
	if details.TotalHoursLogged != 1.5 {
		t.Fatalf("total hours = %v, want 1.5", details.TotalHoursLogged)
	}
}

func TestSprintNestedRoutes(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "owner", false)
	project := ts.createProject(t, token, "PROJ")

	rec := ts.do(t, http.MethodPost, fmt.Sprintf("/api/projects/%d/sprints", project.ID), token, map[string]string{
		"sprint_name": "Sprint 1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sprint: status %d body %s", rec.Code, rec.Body.String())
	}
	sprint := decodeBody[types.Sprint](t, rec)
	if sprint.Status != types.SprintStatusFuture {
		t.Fatalf("sprint status = %q, want future", sprint.Status)
	}

	issue := ts.createIssue(t, token, project.ID)
	rec = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/issues/%d/assign-sprint", issue.ID), token, map[string]int{"sprint_id": sprint.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign sprint: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, fmt.Sprintf("/api/sprints/%d/issues", sprint.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sprint issues: status %d", rec.Code)
	}
	issues := decodeBody[[]types.Issue](t, rec)
	if len(issues) != 1 {
		t.Fatalf("sprint issues = %d, want 1", len(issues))
	}
}

func TestRootBanner(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("root: status %d", rec.Code)
	}
	banner := decodeBody[map[string]string](t, rec)
	if banner["status"] != "running" {
		t.Fatalf("banner = %v", banner)
	}
}
