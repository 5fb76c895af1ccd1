package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/clog"
	"github.com/nhle/studyflow/internal/model"
	"github.com/nhle/studyflow/internal/store"
	"github.com/nhle/studyflow/internal/sync"
)

// Server exposes the task, inbox, course, settings and sync operations
// as a JSON API under /api.
type Server struct {
	store  store.Store
	syncer sync.Runner
	cfg    model.ServerConfig
	logger *slog.Logger
	server *http.Server
}

// New creates a Server.
func New(s store.Store, syncer sync.Runner, cfg model.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:  s,
		syncer: syncer,
		cfg:    cfg,
		logger: logger,
	}
}

// Handler builds the HTTP handler tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(s.logger),
			s.requireSession,
		)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, apperr.New(apperr.NotFound, "not found", nil))
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.listTasks)
			r.Post("/", s.createTask)
			r.Put("/", s.updateTask)
			r.Delete("/", s.deleteTask)
			r.Post("/snooze", s.snoozeTask)
			r.Post("/toggle", s.toggleTask)
		})

		r.Route("/pending-tasks", func(r chi.Router) {
			r.Get("/", s.listPending)
			r.Post("/accept", s.acceptPending)
			r.Post("/reject", s.rejectPending)
			r.Post("/update-and-accept", s.updateAndAcceptPending)
			r.Post("/accept-all", s.acceptAllPending)
			r.Post("/reject-all", s.rejectAllPending)
		})

		r.Route("/courses", func(r chi.Router) {
			r.Get("/", s.listCourses)
			r.Post("/", s.createCourse)
			r.Delete("/", s.deleteCourse)
		})

		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.saveSettings)

		r.Get("/sync", s.syncStatus)
		r.Post("/sync", s.runSync)
	})

	allowed := s.cfg.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.cfg.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down server")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
