package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/kubeadapt/sample-gpu-app/internal/observability"
	"github.com/kubeadapt/sample-gpu-app/internal/probe"
)

const bytesPerMB = 1024 * 1024

// Poller samples GPUs on a timer and publishes the result as gauges.
// It runs until its context is canceled or Stop is called; it never exits
// because of a probe failure.
type Poller struct {
	querier  probe.Querier
	metrics  *observability.Metrics
	interval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	syncOnce sync.Once
	synced   chan struct{}

	// indices reported by the previous tick; only touched by the loop goroutine.
	seen map[string]struct{}
}

// NewPoller creates a Poller that queries q every interval.
func NewPoller(q probe.Querier, metrics *observability.Metrics, interval time.Duration) *Poller {
	return &Poller{
		querier:  q,
		metrics:  metrics,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		synced:   make(chan struct{}),
		seen:     make(map[string]struct{}),
	}
}

// Start launches the background polling goroutine and returns immediately.
func (p *Poller) Start(ctx context.Context) {
	go p.run(ctx)
}

// Stop signals the polling goroutine to exit. It does not wait: an
// in-flight probe is abandoned rather than allowed to delay shutdown.
// Safe to call multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// Done is closed once the polling goroutine has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// WaitForSync blocks until the first tick completes or ctx is canceled.
func (p *Poller) WaitForSync(ctx context.Context) error {
	select {
	case <-p.synced:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	// Poll immediately on start.
	p.tick(ctx)
	p.syncOnce.Do(func() { close(p.synced) })

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.tick(ctx)
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one poll, turning a panic into a logged error.
func (p *Poller) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("gpu poller: tick panicked", "error", fmt.Sprint(r))
		}
	}()
	p.poll(ctx)
}

func (p *Poller) poll(ctx context.Context) {
	samples := p.querier.Query(ctx)

	p.metrics.GPUAvailable.WithLabelValues().Set(float64(len(samples)))

	current := make(map[string]struct{}, len(samples))
	for _, s := range samples {
		idx := strconv.Itoa(s.Index)
		current[idx] = struct{}{}
		p.metrics.GPUMemoryUsedBytes.WithLabelValues(idx).Set(float64(s.MemoryUsedMB) * bytesPerMB)
		p.metrics.GPUMemoryTotalBytes.WithLabelValues(idx).Set(float64(s.MemoryTotalMB) * bytesPerMB)
		p.metrics.GPUUtilizationPercent.WithLabelValues(idx).Set(float64(s.UtilizationPercent))
	}

	for idx := range p.seen {
		if _, ok := current[idx]; !ok {
			p.metrics.DeleteGPU(idx)
		}
	}
	p.seen = current

	slog.Debug("gpu poller: tick complete", "gpu_count", len(samples))
}
