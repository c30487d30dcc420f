package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/KimMachineGun/automemlimit"
	_ "go.uber.org/automaxprocs"

	utilexec "k8s.io/utils/exec"

	"github.com/kubeadapt/sample-gpu-app/internal/compute"
	"github.com/kubeadapt/sample-gpu-app/internal/config"
	"github.com/kubeadapt/sample-gpu-app/internal/observability"
	"github.com/kubeadapt/sample-gpu-app/internal/probe"
	"github.com/kubeadapt/sample-gpu-app/internal/server"
	"github.com/kubeadapt/sample-gpu-app/internal/telemetry"
)

func main() {
	// 1. Load and validate config.
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// 2. Create context with signal handling.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	slog.Info("sample-gpu-app starting",
		"service", cfg.ServiceName,
		"port", cfg.Port,
		"environment", cfg.Environment,
		"pod_name", cfg.PodName,
		"node_name", cfg.NodeName,
		"probe_command", cfg.ProbeCommand,
		"poll_interval", cfg.PollInterval,
		"compute_max_concurrent", cfg.ComputeMaxConcurrent,
		"compute_peak_bytes", cfg.ComputePeakBytes(),
	)

	// 3. Shared infrastructure.
	metrics := observability.NewMetrics()
	gpuProbe := probe.NewProbe(utilexec.New(), cfg.ProbeCommand, cfg.ProbeTimeout, metrics)
	limiter := compute.NewLimiter(cfg.ComputeMaxConcurrent, cfg.ComputeQueueTimeout)
	simulator := compute.NewSimulator(cfg.ComputeMatrixSize, limiter, metrics)

	// 4. Background GPU telemetry. Never awaited on shutdown.
	poller := telemetry.NewPoller(gpuProbe, metrics, cfg.PollInterval)
	poller.Start(ctx)

	// 5. HTTP server.
	srv := server.NewServer(cfg, metrics, gpuProbe, simulator)
	if err := srv.Start(); err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	slog.Info("listening", "addr", srv.Addr())

	<-ctx.Done()
	slog.Info("shutdown signal received")

	// 6. Graceful shutdown.
	poller.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("sample-gpu-app stopped")
}
