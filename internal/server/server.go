// Package server is the composition root: it wires the store, services,
// gate, feed, and handlers together and owns the HTTP server lifecycle.
// main.go stays minimal; everything that depends on everything else is
// assembled here, in one place.
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
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/rafid/todohub/internal/auth"
	"github.com/rafid/todohub/internal/config"
	"github.com/rafid/todohub/internal/feed"
	"github.com/rafid/todohub/internal/gate"
	"github.com/rafid/todohub/internal/handler"
	"github.com/rafid/todohub/internal/metrics"
	"github.com/rafid/todohub/internal/middleware"
	"github.com/rafid/todohub/internal/model"
	sqliteRepo "github.com/rafid/todohub/internal/repository/sqlite"
	"github.com/rafid/todohub/internal/service"
)

// Server holds the HTTP router and the resources it must release on
// shutdown: the database connection and the login limiter's cleanup
// goroutine.
type Server struct {
	router  *chi.Mux
	cfg     *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.LoginLimiter
}

// meteredPublisher counts published change events on their way into the
// broker. It satisfies service.EventPublisher.
type meteredPublisher struct {
	broker  *feed.Broker
	metrics *metrics.Collector
}

func (p *meteredPublisher) Publish(userID string, ev model.ChangeEvent) {
	p.metrics.RecordFeedEvent()
	p.broker.Publish(userID, ev)
}

// New assembles the full dependency graph and returns a ready server.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes wires middleware, services, and routes.
//
// Route structure:
//
//	GET  /, /login, /signup, /dashboard, /admin   → page shells, behind the gate
//	POST /api/signup, /api/login, /api/logout     → identity
//	GET  /api/me                                  → current profile
//	CRUD /api/todos[/{id}]                        → owner-scoped todos
//	GET  /api/events                              → SSE change feed
//	*    /api/admin/users...                      → roster operations
//	GET  /metrics, /healthz                       → operational
func (s *Server) setupRoutes() error {
	// A dedicated registry keeps re-registration panics out of tests that
	// build more than one server.
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	tokens, err := auth.NewTokenService(s.cfg.SessionSecret, s.cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	broker := feed.NewBroker(s.logger)
	publisher := &meteredPublisher{broker: broker, metrics: collector}

	authService := service.NewAuthService(s.db, s.db, tokens, passwords, s.logger)
	if s.cfg.AdminEmail != "" {
		authService.BootstrapAdmin(s.cfg.AdminEmail)
	}
	todoService := service.NewTodoService(s.db, publisher, s.logger)
	adminService := service.NewAdminService(s.db,
		service.RosterPolicy{ProtectPeerAdmins: s.cfg.ProtectPeerAdmins}, s.logger)

	// The auth service doubles as the gate's session resolver and revoker;
	// both read the same session table, so one component keeps them
	// consistent.
	accessGate := gate.New(authService, authService, authService, collector, s.logger)

	pageHandler, err := handler.NewPageHandler(s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}
	authHandler := handler.NewAuthHandler(authService, collector, s.logger)
	todoHandler := handler.NewTodoHandler(todoService)
	adminHandler := handler.NewAdminHandler(adminService)
	eventsHandler := handler.NewEventsHandler(broker, s.logger)

	s.limiter = middleware.NewLoginLimiter(middleware.LoginLimiterConfig{
		Rate:            rateLimitPerMinute(s.cfg.LoginRatePerMinute),
		Burst:           s.cfg.LoginBurst,
		CleanupInterval: 5 * time.Minute,
	}, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger, collector))

	// Page routes run behind the gate's navigation middleware: every
	// request gets a fresh disposition, including the forced sign-out of a
	// freshly blocked account.
	s.router.Group(func(r chi.Router) {
		r.Use(accessGate.Middleware)
		r.Get(gate.PathRoot, pageHandler.HandleIndex)
		r.Get(gate.PathLogin, pageHandler.HandleLogin)
		r.Get(gate.PathSignup, pageHandler.HandleSignup)
		r.Get(gate.PathDashboard, pageHandler.HandleDashboard)
		r.Get(gate.PathAdmin, pageHandler.HandleAdmin)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignup)
		r.With(s.limiter.Middleware).Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)

		// Everything below requires a live (non-revoked) session.
		r.Group(func(r chi.Router) {
			r.Use(accessGate.RequireSession)

			r.Get("/me", authHandler.HandleMe)

			r.Get("/todos", todoHandler.HandleList)
			r.Post("/todos", todoHandler.HandleCreate)
			r.Patch("/todos/{id}", todoHandler.HandleUpdate)
			r.Delete("/todos/{id}", todoHandler.HandleDelete)

			r.Get("/events", eventsHandler.HandleStream)

			r.Get("/admin/users", adminHandler.HandleList)
			r.Post("/admin/users/{id}/block", adminHandler.HandleSetBlocked)
			r.Post("/admin/users/{id}/admin", adminHandler.HandleSetAdmin)
			r.Delete("/admin/users", adminHandler.HandleDelete)
		})
	})

	s.router.Method(http.MethodGet, "/metrics", metrics.Handler(registry))
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return nil
}

func rateLimitPerMinute(perMinute int) rate.Limit {
	return rate.Limit(float64(perMinute) / 60.0)
}

// Handler exposes the router, for tests that drive the full stack through
// httptest instead of a listening socket.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the server's resources without serving. Start handles this
// itself; Close is for builds that never start listening.
func (s *Server) Close() {
	s.limiter.Stop()
	s.db.Close()
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests, close
// the database.
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.limiter.Stop()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: /api/events holds its connection open for the
		// whole session.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
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
