package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const unknown = "unknown"

// Config holds all service configuration values.
type Config struct {
	Port        int
	ServiceName string

	// Deployment identity, normally injected through the downward API.
	Environment string // ENVIRONMENT, default: "unknown"
	PodName     string // POD_NAME, default: "unknown"
	NodeName    string // NODE_NAME, default: "unknown"

	// GPU telemetry
	ProbeCommand string        // GPU_PROBE_COMMAND, default: "nvidia-smi"
	ProbeTimeout time.Duration // GPU_PROBE_TIMEOUT, default: 10s
	PollInterval time.Duration // GPU_POLL_INTERVAL, default: 15s

	// Synthetic compute
	ComputeMatrixSize    int           // COMPUTE_MATRIX_SIZE, default: 500
	ComputeMaxConcurrent int           // COMPUTE_MAX_CONCURRENT, default: 4
	ComputeQueueTimeout  time.Duration // COMPUTE_QUEUE_TIMEOUT, default: 30s

	LogLevel        string
	DebugEndpoints  bool // DEBUG_ENDPOINTS, default: false; enables pprof
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables and returns a Config
// with defaults applied for any unset values.
func Load() Config {
	return Config{
		Port:        parseInt("PORT", 8080),
		ServiceName: envOrDefault("SERVICE_NAME", "sample-gpu-app"),

		Environment: envOrDefault("ENVIRONMENT", unknown),
		PodName:     envOrDefault("POD_NAME", unknown),
		NodeName:    envOrDefault("NODE_NAME", unknown),

		ProbeCommand: envOrDefault("GPU_PROBE_COMMAND", "nvidia-smi"),
		ProbeTimeout: parseDuration("GPU_PROBE_TIMEOUT", 10*time.Second),
		PollInterval: parseDuration("GPU_POLL_INTERVAL", 15*time.Second),

		ComputeMatrixSize:    parseInt("COMPUTE_MATRIX_SIZE", 500),
		ComputeMaxConcurrent: parseInt("COMPUTE_MAX_CONCURRENT", 4),
		ComputeQueueTimeout:  parseDuration("COMPUTE_QUEUE_TIMEOUT", 30*time.Second),

		LogLevel:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		DebugEndpoints:  parseBool("DEBUG_ENDPOINTS", false),
		ShutdownTimeout: parseDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
	}
}

// SlogLevel maps LogLevel onto a slog.Level. Unknown values map to info;
// Validate rejects them before this is reached in main.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// parseDuration tries time.ParseDuration first, then falls back to treating
// the value as integer seconds.
func parseDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(v)
	if err == nil {
		return d
	}

	secs, err := strconv.Atoi(v)
	if err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}

func parseBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func parseInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
