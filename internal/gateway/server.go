package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"ventwave/internal/agent"
	"ventwave/internal/history"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultMaxUpload = 20 << 20

// Agent is what the gateway serves: a sender bound to one agent definition.
type Agent interface {
	agent.Sender
	Config() *agent.Config
}

type Option func(*Server)

// WithHistory enables the /v1/analyses endpoints.
func WithHistory(store *history.Store) Option {
	return func(s *Server) { s.history = store }
}

// WithMaxUpload caps the request body size of /v1/analyze.
func WithMaxUpload(bytes int64) Option {
	return func(s *Server) {
		if bytes > 0 {
			s.maxUpload = bytes
		}
	}
}

type Server struct {
	agent     Agent
	history   *history.Store
	maxUpload int64
	mux       *http.ServeMux
}

func NewServer(a Agent, opts ...Option) *Server {
	s := &Server{
		agent:     a,
		maxUpload: defaultMaxUpload,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	s.mux.HandleFunc("GET /v1/agent", s.handleAgent)
	s.mux.HandleFunc("GET /v1/instructions", s.handleInstructions)
	s.mux.HandleFunc("GET /v1/analyses", s.handleListAnalyses)
	s.mux.HandleFunc("GET /v1/analyses/{id}", s.handleGetAnalysis)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "gateway")
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("gateway shutting down", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
