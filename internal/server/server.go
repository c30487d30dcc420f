package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"

	"github.com/kubeadapt/sample-gpu-app/internal/config"
	"github.com/kubeadapt/sample-gpu-app/internal/observability"
	"github.com/kubeadapt/sample-gpu-app/internal/probe"
)

// Computer runs one synthetic computation.
type Computer interface {
	Run(ctx context.Context) (ok bool, elapsed time.Duration)
}

// Server exposes the application, health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	listener   net.Listener

	cfg      config.Config
	metrics  *observability.Metrics
	querier  probe.Querier
	computer Computer
}

// NewServer creates a new server listening on cfg.Port.
// Pass Port=0 to let the OS pick a free port (useful for tests).
// When cfg.DebugEndpoints is true, pprof endpoints are registered.
func NewServer(cfg config.Config, metrics *observability.Metrics, querier probe.Querier, computer Computer) *Server {
	s := &Server{
		cfg:      cfg,
		metrics:  metrics,
		querier:  querier,
		computer: computer,
	}

	r := mux.NewRouter()
	r.Use(requestID, s.instrument)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/compute", s.handleCompute).Methods(http.MethodGet)
	r.Handle("/metrics", s.metricsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)

	if cfg.DebugEndpoints {
		// pprof handlers, only enabled when DEBUG_ENDPOINTS=true
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}

	s.handler = gzhttp.GzipHandler(r)

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        s.handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address. After Start it is the bound address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins listening and serving HTTP in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server listen: %w", err)
	}
	s.listener = ln
	// Update Addr to the actual address (important when port=0).
	s.httpServer.Addr = ln.Addr().String()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server exited", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
