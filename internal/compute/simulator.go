// Package compute runs a synthetic dense workload that stands in for GPU
// work in the sample application.
package compute

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	apperrors "github.com/kubeadapt/sample-gpu-app/internal/errors"
	"github.com/kubeadapt/sample-gpu-app/internal/observability"
)

// Simulator multiplies two random size×size matrices per run.
type Simulator struct {
	size    int
	limiter *Limiter
	metrics *observability.Metrics
	fill    func(n int) []float64
}

// NewSimulator creates a Simulator for square matrices of the given size.
// Each run holds one limiter slot while its three matrices are alive.
func NewSimulator(size int, limiter *Limiter, metrics *observability.Metrics) *Simulator {
	return &Simulator{size: size, limiter: limiter, metrics: metrics, fill: randomMatrix}
}

// Run performs one computation. It never panics; any failure, including
// no free limiter slot or cancellation of ctx mid-run, is reported as
// ok == false. Allocation failure cannot be recovered; the limiter bounds
// peak allocation instead.
func (s *Simulator) Run(ctx context.Context) (ok bool, elapsed time.Duration) {
	start := time.Now()
	err := s.limitedRun(ctx)
	elapsed = time.Since(start)

	if err != nil {
		s.metrics.ComputeFailures.WithLabelValues().Inc()
		slog.Error("computation failed", "code", apperrors.CodeOf(err), "error", err, "elapsed", elapsed)
		return false, elapsed
	}

	s.metrics.GPUComputations.WithLabelValues().Inc()
	return true, elapsed
}

func (s *Simulator) limitedRun(ctx context.Context) error {
	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return s.run(ctx)
}

func (s *Simulator) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.New(apperrors.ErrComputeFailed, "compute", "panic", fmt.Errorf("%v", r))
		}
	}()

	n := s.size
	a := s.fill(n)
	b := s.fill(n)
	c := make([]float64, n*n)

	// i-k-j order keeps the inner loop on contiguous rows of b and c.
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return apperrors.New(apperrors.ErrComputeFailed, "compute", "canceled", err)
		}
		ci := c[i*n : (i+1)*n]
		for k := 0; k < n; k++ {
			aik := a[i*n+k]
			bk := b[k*n : (k+1)*n]
			for j := range ci {
				ci[j] += aik * bk[j]
			}
		}
	}
	return nil
}

func randomMatrix(n int) []float64 {
	m := make([]float64, n*n)
	for i := range m {
		m[i] = rand.Float64()
	}
	return m
}
