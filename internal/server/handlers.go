package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kubeadapt/sample-gpu-app/internal/probe"
)

type indexResponse struct {
	Status      string            `json:"status"`
	Service     string            `json:"service"`
	GPUCount    int               `json:"gpu_count"`
	GPUs        []probe.GPUSample `json:"gpus"`
	Environment string            `json:"environment"`
	PodName     string            `json:"pod_name"`
	NodeName    string            `json:"node_name"`
}

type computeResponse struct {
	Status            string  `json:"status"`
	ComputationTimeMS float64 `json:"computation_time_ms"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	gpus := s.querier.Query(r.Context())
	if gpus == nil {
		gpus = []probe.GPUSample{}
	}

	writeJSON(w, http.StatusOK, indexResponse{
		Status:      "healthy",
		Service:     s.cfg.ServiceName,
		GPUCount:    len(gpus),
		GPUs:        gpus,
		Environment: s.cfg.Environment,
		PodName:     s.cfg.PodName,
		NodeName:    s.cfg.NodeName,
	})
}

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	ok, elapsed := s.computer.Run(r.Context())
	if elapsed < 0 {
		elapsed = 0
	}
	resp := computeResponse{
		Status:            "success",
		ComputationTimeMS: float64(elapsed) / float64(time.Millisecond),
	}

	if !ok {
		resp.Status = "error"
		slog.Warn("compute request failed", "request_id", RequestIDFromContext(r.Context()), "elapsed", elapsed)
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// metricsHandler serves the registry with Accept-based format negotiation.
// Compression is left to the gzhttp wrapper around the router.
func (s *Server) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{
		ErrorLog:           slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		ErrorHandling:      promhttp.HTTPErrorOnError,
		DisableCompression: true,
		EnableOpenMetrics:  true,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "healthy"})
}

// handleReady has no downstream dependencies to check.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
