package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sprintdesk/apiserver/config"
	"github.com/sprintdesk/apiserver/internal/authz"
	"github.com/sprintdesk/apiserver/internal/db"
	"github.com/sprintdesk/apiserver/internal/handlers"
	"github.com/sprintdesk/apiserver/internal/services"
	"github.com/sprintdesk/apiserver/internal/storage"
	"github.com/sprintdesk/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
}

// New wires repositories, services, the guard, and the router.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	blobs, err := newBlobStorage(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	projectRepo := store.NewProjectRepository(dbConn)
	sprintRepo := store.NewSprintRepository(dbConn)
	issueRepo := store.NewIssueRepository(dbConn)
	commentRepo := store.NewCommentRepository(dbConn)
	worklogRepo := store.NewWorklogRepository(dbConn)
	attachmentRepo := store.NewAttachmentRepository(dbConn)

	tokenTTL := time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute
	authService := services.NewAuthService(userRepo, jwtSecret, tokenTTL)
	userService := services.NewUserService(userRepo)
	projectService := services.NewProjectService(projectRepo)
	sprintService := services.NewSprintService(sprintRepo)
	issueService := services.NewIssueService(issueRepo, sprintRepo, userRepo, commentRepo, worklogRepo, attachmentRepo)
	commentService := services.NewCommentService(commentRepo)
	worklogService := services.NewWorklogService(worklogRepo)
	attachmentService := services.NewAttachmentService(attachmentRepo, blobs)

	guard := authz.NewGuard(projectRepo, issueRepo)
	requireAuth := handlers.RequireAuth(authService)
	healthHandler := handlers.NewHealthHandler(dbConn)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)

	router.Get("/", handlers.Root)
	router.Get("/health", healthHandler.Health)

	router.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authService)
		})
		api.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			handlers.UserRouter(r, userService)
		})
		api.Route("/projects", func(r chi.Router) {
			r.Use(requireAuth)
			handlers.ProjectRouter(r, projectService, sprintService, issueService, guard)
		})
		api.Route("/sprints", func(r chi.Router) {
			r.Use(requireAuth)
			handlers.SprintRouter(r, projectService, sprintService, issueService, guard)
		})
		api.Route("/issues", func(r chi.Router) {
			r.Use(requireAuth)
			handlers.IssueRouter(r, projectService, sprintService, issueService, guard)
		})
		api.Route("/comments", func(r chi.Router) {
			r.Use(requireAuth)
			handlers.CommentRouter(r, commentService, issueService, guard)
		})
		api.Route("/worklogs", func(r chi.Router) {
			r.Use(requireAuth)
			handlers.WorklogRouter(r, worklogService, issueService, projectService, guard)
		})
		api.Route("/attachments", func(r chi.Router) {
			r.Use(requireAuth)
			handlers.AttachmentRouter(r, attachmentService, issueService, guard)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
	}, nil
}

// newBlobStorage selects the attachment backend from config.
func newBlobStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	switch cfg.Backend {
	case "", "local":
		backend, err := storage.NewLocalBackend(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	case "minio":
		backend, err := storage.NewMinioBackend(cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := backend.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
