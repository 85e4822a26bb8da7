// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware and
// routes, and decides which URL patterns map to which handler functions,
// what middleware runs on which routes, and how the server stops.
//
// WHY SEPARATE FROM main.go?
// Tests build a Server with an in-memory database and drive Handler() with
// httptest, without running main or opening a port.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New():
//	  sqlite.DB ─┬→ services (Auth, User, ProductType, Product, Comparison) → handlers
//	             └→ auth.Resolver (with TokenService) → auth middleware
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/routes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/comparathor/internal/auth"
	"github.com/sakif/comparathor/internal/config"
	"github.com/sakif/comparathor/internal/handler"
	"github.com/sakif/comparathor/internal/middleware"
	sqliteRepo "github.com/sakif/comparathor/internal/repository/sqlite"
	"github.com/sakif/comparathor/internal/seed"
	"github.com/sakif/comparathor/internal/service"
)

// APIPrefix is the versioned mount point. Every route is also served at the
// root.
const APIPrefix = "/api/v1"

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after a graceful
// shutdown; code that never calls Start (tests) must call Close.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database, applies the seed file (if configured) and builds
// the router.
//
// IMPORT ALIAS:
// repository/sqlite is imported as `sqliteRepo` to keep it apart from the
// sqlite driver package.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	passwords, err := auth.NewPasswordService(cfg.BcryptCost)
	if err != nil {
		db.Close()
		return nil, err
	}
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		db.Close()
		return nil, err
	}

	if cfg.SeedFile != "" {
		loader := seed.NewLoader(db, passwords, logger)
		if _, err := loader.LoadFile(context.Background(), cfg.SeedFile); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	s.routes(passwords, tokens)
	return s, nil
}

// routes configures all middleware and route handlers.
//
// ROUTE STRUCTURE (each also under /api/v1):
//
//	GET    /healthz                   → store ping
//	POST   /auth/register             → create account
//	POST   /auth/login                → issue token
//	GET    /users/me                  → current user            [auth]
//	PUT    /users/me                  → update email/password   [auth]
//	PUT    /admin/users/{id}/role     → change a user's role    [admin]
//	GET    /product-types[/{id}]      → list / get
//	POST   /product-types             → create                  [admin]
//	DELETE /product-types/{id}        → delete                  [admin]
//	GET    /products[/{id}]           → list / get
//	POST   /products                  → create                  [auth]
//	PUT    /products/{id}             → update                  [owner|admin]
//	DELETE /products/{id}             → delete                  [owner|admin]
//	GET    /comparisons[/{id}]        → list / get
//	POST   /comparisons               → create                  [optional auth]
//	PUT    /comparisons/{id}          → update                  [owner|admin]
//	DELETE /comparisons/{id}          → delete                  [owner|admin]
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns a unique ID to each request (for tracing)
//  2. RealIP: extracts the real client IP from proxy headers
//  3. Logger: logs each request with timing info and the request ID
//  4. Recoverer: turns panics into 500 instead of crashing
//  5. StripSlashes: "/comparisons/" routes like "/comparisons"
//  6. CORS: answers preflight before any auth middleware sees it
func (s *Server) routes(passwords *auth.PasswordService, tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.StripSlashes)
	s.router.Use(middleware.CORS(s.config.CORSOrigins))

	// DEPENDENCY CHAIN:
	//   s.db implements every repository interface.
	//   Services receive the interfaces; handlers receive the services.
	resolver := auth.NewResolver(tokens, s.db, s.logger)

	authSvc := service.NewAuthService(s.db, tokens, passwords, s.logger, s.config.AllowAdminSignup)
	userSvc := service.NewUserService(s.db, passwords, s.logger)
	typeSvc := service.NewProductTypeService(s.db, s.logger)
	productSvc := service.NewProductService(s.db, s.db, s.logger)
	comparisonSvc := service.NewComparisonService(s.db, s.db, s.db, s.logger)

	authH := handler.NewAuthHandler(authSvc, s.logger)
	userH := handler.NewUserHandler(userSvc, s.logger)
	typeH := handler.NewProductTypeHandler(typeSvc, s.logger)
	productH := handler.NewProductHandler(productSvc, s.logger)
	comparisonH := handler.NewComparisonHandler(comparisonSvc, s.logger)
	healthH := handler.NewHealthHandler(s.db, s.logger)

	requireAuth := auth.RequireAuth(resolver)
	optionalAuth := auth.OptionalAuth(resolver)

	api := func(r chi.Router) {
		r.Get("/healthz", healthH.HandleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authH.HandleRegister)
			r.Post("/login", authH.HandleLogin)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", userH.HandleMe)
			r.Put("/me", userH.HandleUpdateMe)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, auth.RequireAdmin)
			r.Put("/users/{id}/role", userH.HandleUpdateRole)
		})

		r.Route("/product-types", func(r chi.Router) {
			r.Get("/", typeH.HandleList)
			r.Get("/{id}", typeH.HandleGet)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth, auth.RequireAdmin)
				r.Post("/", typeH.HandleCreate)
				r.Delete("/{id}", typeH.HandleDelete)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productH.HandleList)
			r.Get("/{id}", productH.HandleGet)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", productH.HandleCreate)
				r.Put("/{id}", productH.HandleUpdate)
				r.Delete("/{id}", productH.HandleDelete)
			})
		})

		r.Route("/comparisons", func(r chi.Router) {
			r.Get("/", comparisonH.HandleList)
			r.Get("/{id}", comparisonH.HandleGet)
			r.With(optionalAuth).Post("/", comparisonH.HandleCreate)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Put("/{id}", comparisonH.HandleUpdate)
				r.Delete("/{id}", comparisonH.HandleDelete)
			})
		})
	}

	s.router.Group(api)
	s.router.Route(APIPrefix, api)
}

// Handler exposes the router, for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
//
// The `defer s.db.Close()` makes step 3 run even if something panics.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d%s", s.config.Port, APIPrefix)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
