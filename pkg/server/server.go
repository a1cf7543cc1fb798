package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/logger"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// JSONFunc produces the body of a read-only JSON endpoint.
type JSONFunc func(ctx context.Context) (interface{}, error)

// Option customises the server.
type Option func(*Server)

// WithReadyCheck adds a named check to /ready.
func WithReadyCheck(name string, check Check) Option {
	return func(s *Server) {
		s.checks = append(s.checks, namedCheck{name: name, check: check})
	}
}

// WithJSON serves the result of fn as JSON on GET path.
func WithJSON(path string, fn JSONFunc) Option {
	return func(s *Server) {
		s.mux.HandleFunc(path, s.jsonHandler(fn))
	}
}

type namedCheck struct {
	name  string
	check Check
}

// Server handles health checks, metrics and the read-only player endpoints.
type Server struct {
	httpServer   *http.Server
	mux          *http.ServeMux
	logger       *logger.Logger
	checks       []namedCheck
	checkTimeout time.Duration
}

func New(addr string, l *logger.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:          mux,
		logger:       l.Named("server"),
		checkTimeout: 2 * time.Second,
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.checkTimeout)
	defer cancel()

	failed := make(map[string]string)
	for _, c := range s.checks {
		if err := c.check(ctx); err != nil {
			failed[c.name] = err.Error()
		}
	}

	if len(failed) > 0 {
		s.logger.Warn("readiness check failed", zap.Any("checks", failed))
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"ready": false, "failed": failed})
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func (s *Server) jsonHandler(fn JSONFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}

		body, err := fn(r.Context())
		if err != nil {
			s.logger.Error("handler failed", err, zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) Start() error {
	s.logger.Info("starting observability server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
