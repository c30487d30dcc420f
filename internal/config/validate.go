package config

import (
	"fmt"
	"time"
)

const (
	maxMatrixSize = 4096

	// maxComputeBytes caps the matrices alive across all concurrent runs.
	// Each run holds three size×size float64 matrices.
	maxComputeBytes = 2 << 30
)

// Validate checks that the Config contains valid values.
// Returns an error describing the first invalid field found.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: PORT must be 1-65535, got %d", c.Port)
	}

	if c.ProbeCommand == "" {
		return fmt.Errorf("config: GPU_PROBE_COMMAND must not be empty")
	}

	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("config: ProbeTimeout must be > 0, got %v", c.ProbeTimeout)
	}

	if c.PollInterval < time.Second {
		return fmt.Errorf("config: PollInterval must be >= 1s, got %v", c.PollInterval)
	}

	if c.ComputeMatrixSize < 1 || c.ComputeMatrixSize > maxMatrixSize {
		return fmt.Errorf("config: ComputeMatrixSize must be 1-%d, got %d", maxMatrixSize, c.ComputeMatrixSize)
	}

	if c.ComputeMaxConcurrent < 1 {
		return fmt.Errorf("config: COMPUTE_MAX_CONCURRENT must be >= 1, got %d", c.ComputeMaxConcurrent)
	}

	if peak := c.ComputePeakBytes(); peak > maxComputeBytes {
		return fmt.Errorf("config: COMPUTE_MAX_CONCURRENT=%d at COMPUTE_MATRIX_SIZE=%d needs %d bytes, limit is %d",
			c.ComputeMaxConcurrent, c.ComputeMatrixSize, peak, int64(maxComputeBytes))
	}

	if c.ComputeQueueTimeout < 0 {
		return fmt.Errorf("config: ComputeQueueTimeout must be >= 0, got %v", c.ComputeQueueTimeout)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: ShutdownTimeout must be > 0, got %v", c.ShutdownTimeout)
	}

	return nil
}

// ComputePeakBytes is the matrix memory held when every compute slot is busy.
func (c Config) ComputePeakBytes() int64 {
	n := int64(c.ComputeMatrixSize)
	return int64(c.ComputeMaxConcurrent) * 3 * n * n * 8
}
