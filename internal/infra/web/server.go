package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"chattrain/internal/content"
	"chattrain/internal/domain/ports/repository"
	"chattrain/internal/infra/ws"
	"chattrain/internal/usecase"
)

type Server struct {
	uc        usecase.TrainingUseCase
	loader    *content.Loader
	files     *content.FileServer
	snapshots repository.ScenarioSnapshotRepository // optional catalog fallback
	chat      *ws.Handler
	auth      *AuthManager
	adminKey  string
	log       *zerolog.Logger
}

func NewServer(
	uc usecase.TrainingUseCase,
	loader *content.Loader,
	files *content.FileServer,
	snapshots repository.ScenarioSnapshotRepository,
	chat *ws.Handler,
	auth *AuthManager,
	adminKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		uc:        uc,
		loader:    loader,
		files:     files,
		snapshots: snapshots,
		chat:      chat,
		auth:      auth,
		adminKey:  adminKey,
		log:       &l,
	}
}

// Router assembles the full route tree, admin routes behind the JWT guard.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/scenarios", s.handleListScenarios)
		r.Get("/scenarios/{id}", s.handleGetScenario)
		r.Get("/scenarios/{id}/documents", s.handleScenarioDocuments)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/sessions/{id}/messages", s.handleSessionMessages)
		r.Get("/documents/{scenario_id}/{filename}", s.handleDocument)

		r.Post("/admin/login", s.handleAdminLogin)
		r.Post("/admin/logout", s.handleAdminLogout)
		r.Group(func(r chi.Router) {
			r.Use(s.adminOnly)
			r.Get("/content/stats", s.handleContentStats)
			r.Post("/content/reload", s.handleContentReload)
			r.Get("/scenarios/{id}/validate", s.handleValidateScenario)
		})
	})

	if s.chat != nil {
		r.Get("/chat/{session_id}", s.chat.ServeHTTP)
	}
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Run serves until ctx is cancelled, then drains with a short grace period.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.auth.cfg.HMACSecret) == 0 {
			s.log.Error().Msg("admin JWT secret is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
