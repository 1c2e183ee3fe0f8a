// Package server wires the application together: router, middleware,
// routes, and graceful shutdown. It is the composition root — every
// handler, service, and repository is connected here and nowhere else.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/broken-weave/internal/auth"
	"github.com/sakif/broken-weave/internal/handler"
	"github.com/sakif/broken-weave/internal/middleware"
	"github.com/sakif/broken-weave/internal/repository"
	"github.com/sakif/broken-weave/internal/service"
	"github.com/sakif/broken-weave/internal/storage"
)

// Config holds the server-level settings. The database and file store are
// constructed in main from their own settings and injected.
type Config struct {
	Port        int
	TemplateDir string
	StaticDir   string
	JWTSecret   string

	// PublicVolunteers opens GET /api/volunteers to everyone. Default is
	// admin-only, matching the data's sensitivity.
	PublicVolunteers bool
}

// Server owns the router and the injected resources. The database is
// closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	store  repository.Store
	files  storage.Store // nil when uploads are disabled
}

// New assembles the full dependency chain: store → services → handlers →
// routes. Each layer only sees the interface below it.
func New(cfg Config, store repository.Store, files storage.Store, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		files:  files,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware, page routes, and the API.
//
// GET    /                                → frontend page
// GET    /static/*                        → CSS/JS assets
// GET    /uploads/{name}                  → stored case images
// POST   /api/register                    → create account
// POST   /api/login                       → credentials → token
// GET    /api/health                      → readiness probe
// POST   /api/missing-persons             → report a case (JSON or multipart)
// GET    /api/missing-persons             → list cases
// GET    /api/missing-persons/search      → search cases
// GET    /api/success-stories             → recent found cases
// POST   /api/volunteer/register          → volunteer sign-up
// GET    /api/volunteers                  → volunteer list       [admin]
// PATCH  /api/missing-persons/{id}/found  → mark case found      [admin]
// PATCH  /api/missing-persons/{id}/image  → replace case photo   [admin]
// PATCH  /api/missing-persons/{id}        → edit case details    [admin]
// DELETE /api/missing-persons/{id}        → delete case + image  [admin]
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	pagesHandler, err := handler.NewPagesHandler(s.config.TemplateDir, s.logger)
	if err != nil {
		return fmt.Errorf("creating pages handler: %w", err)
	}
	s.router.Get("/", pagesHandler.HandleIndex)

	if s.files != nil {
		uploadsHandler := handler.NewUploadsHandler(s.files, s.logger)
		s.router.Get("/uploads/{name}", uploadsHandler.HandleServe)
	}

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	authHandler := handler.NewAuthHandler(
		service.NewAuthService(s.store, tokens, passwords, s.logger), s.logger)
	personHandler := handler.NewPersonHandler(
		service.NewPersonService(s.store, s.files, s.logger), s.logger)
	volunteerHandler := handler.NewVolunteerHandler(
		service.NewVolunteerService(s.store, s.logger), s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/health", healthHandler.HandleHealth)

		r.Post("/missing-persons", personHandler.HandleReport)
		r.Get("/missing-persons", personHandler.HandleList)
		r.Get("/missing-persons/search", personHandler.HandleSearch)
		r.Get("/success-stories", personHandler.HandleSuccessStories)
		r.Post("/volunteer/register", volunteerHandler.HandleRegister)

		if s.config.PublicVolunteers {
			r.Get("/volunteers", volunteerHandler.HandleList)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Use(auth.RequireAdmin)

			if !s.config.PublicVolunteers {
				r.Get("/volunteers", volunteerHandler.HandleList)
			}
			r.Patch("/missing-persons/{id}/found", personHandler.HandleMarkFound)
			r.Patch("/missing-persons/{id}/image", personHandler.HandleReplaceImage)
			r.Patch("/missing-persons/{id}", personHandler.HandleUpdate)
			r.Delete("/missing-persons/{id}", personHandler.HandleDelete)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests, close
// the database.
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.Bool("uploads", s.files != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
