// Package server exposes the plan pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexanderramin/smartplan/internal/pipeline"
	"github.com/rs/cors"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	AllowedOrigins []string
	// AuthSecret enables bearer authentication on the API routes when set.
	AuthSecret []byte
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server routes HTTP requests to a PlanService.
type Server struct {
	svc     pipeline.PlanService
	opts    Options
	logger  *slog.Logger
	handler http.Handler
}

// New builds a Server and its routes.
func New(svc pipeline.PlanService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{svc: svc, opts: opts, logger: logger}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /smart_goal", s.handleSmartGoal)
	api.HandleFunc("POST /generate_milestones_and_tasks", s.handleGeneratePlan)
	api.HandleFunc("GET /plans", s.handleListPlans)
	api.HandleFunc("GET /plans/{guid}", s.handleGetPlan)
	api.HandleFunc("GET /plans/{guid}/export", s.handleExportPlan)
	api.HandleFunc("POST /feedback", s.handleFeedback)

	var protected http.Handler = api
	if len(s.opts.AuthSecret) > 0 {
		protected = requireAuth(s.opts.AuthSecret, api)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}
	mux.Handle("/", protected)

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return logRequests(s.logger, c.Handler(mux))
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
