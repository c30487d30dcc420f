package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubeadapt/sample-gpu-app/internal/observability"
	"github.com/kubeadapt/sample-gpu-app/internal/probe"
)

const (
	testWaitTimeout  = 5 * time.Second
	testPollInterval = 10 * time.Millisecond
)

// scriptedQuerier returns its batches in order, then repeats the last one.
type scriptedQuerier struct {
	mu      sync.Mutex
	batches [][]probe.GPUSample
	calls   int
	panicOn int // 1-based call number that panics; 0 disables
}

func (q *scriptedQuerier) Query(_ context.Context) []probe.GPUSample {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if q.calls == q.panicOn {
		panic("probe exploded")
	}
	if len(q.batches) == 0 {
		return []probe.GPUSample{}
	}
	i := q.calls - 1
	if i >= len(q.batches) {
		i = len(q.batches) - 1
	}
	return q.batches[i]
}

func (q *scriptedQuerier) Calls() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

// blockingQuerier blocks every call until release is closed.
type blockingQuerier struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (q *blockingQuerier) Query(_ context.Context) []probe.GPUSample {
	q.once.Do(func() { close(q.entered) })
	<-q.release
	return []probe.GPUSample{}
}

func teslaT4Pair() []probe.GPUSample {
	return []probe.GPUSample{
		{Index: 0, Name: "Tesla T4", MemoryUsedMB: 512, MemoryTotalMB: 16384, UtilizationPercent: 10},
		{Index: 1, Name: "Tesla T4", MemoryUsedMB: 1024, MemoryTotalMB: 16384, UtilizationPercent: 20},
	}
}

func gpuAvailable(m *observability.Metrics) float64 {
	return testutil.ToFloat64(m.GPUAvailable.WithLabelValues())
}

func TestPoller_TwoTeslaT4(t *testing.T) {
	m := observability.NewMetrics()
	p := NewPoller(&scriptedQuerier{batches: [][]probe.GPUSample{teslaT4Pair()}}, m, time.Hour)

	p.tick(context.Background())

	assert.Equal(t, 2.0, gpuAvailable(m))
	assert.Equal(t, float64(512*1024*1024), testutil.ToFloat64(m.GPUMemoryUsedBytes.WithLabelValues("0")))
	assert.Equal(t, float64(1024*1024*1024), testutil.ToFloat64(m.GPUMemoryUsedBytes.WithLabelValues("1")))
	assert.Equal(t, float64(16384*1024*1024), testutil.ToFloat64(m.GPUMemoryTotalBytes.WithLabelValues("1")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.GPUUtilizationPercent.WithLabelValues("1")))
}

func TestPoller_GaugeReflectsLatestTick(t *testing.T) {
	m := observability.NewMetrics()
	pair := teslaT4Pair()
	q := &scriptedQuerier{batches: [][]probe.GPUSample{pair, pair[:1], {}, pair}}
	p := NewPoller(q, m, time.Hour)

	want := []float64{2, 1, 0, 2}
	for i, w := range want {
		p.tick(context.Background())
		assert.Equal(t, w, gpuAvailable(m), "after tick %d", i+1)
	}
}

func TestPoller_RemovesVanishedGPUs(t *testing.T) {
	m := observability.NewMetrics()
	pair := teslaT4Pair()
	q := &scriptedQuerier{batches: [][]probe.GPUSample{pair, pair[:1]}}
	p := NewPoller(q, m, time.Hour)

	p.tick(context.Background())
	require.Equal(t, 2, testutil.CollectAndCount(m.GPUMemoryUsedBytes))

	p.tick(context.Background())
	assert.Equal(t, 1, testutil.CollectAndCount(m.GPUMemoryUsedBytes))
	assert.Equal(t, 1, testutil.CollectAndCount(m.GPUMemoryTotalBytes))
	assert.Equal(t, 1, testutil.CollectAndCount(m.GPUUtilizationPercent))
}

func TestPoller_EmptyProbe(t *testing.T) {
	m := observability.NewMetrics()
	p := NewPoller(&scriptedQuerier{}, m, time.Hour)

	p.tick(context.Background())

	assert.Equal(t, 0.0, gpuAvailable(m))
	assert.Equal(t, 0, testutil.CollectAndCount(m.GPUMemoryUsedBytes))
}

func TestPoller_Lifecycle(t *testing.T) {
	m := observability.NewMetrics()
	q := &scriptedQuerier{batches: [][]probe.GPUSample{teslaT4Pair()}}
	p := NewPoller(q, m, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	defer p.Stop()

	require.NoError(t, p.WaitForSync(ctx))
	assert.Equal(t, 2.0, gpuAvailable(m))

	require.Eventually(t, func() bool {
		return q.Calls() >= 3
	}, testWaitTimeout, testPollInterval)
}

func TestPoller_SurvivesPanickingTick(t *testing.T) {
	m := observability.NewMetrics()
	q := &scriptedQuerier{batches: [][]probe.GPUSample{teslaT4Pair()}, panicOn: 1}
	p := NewPoller(q, m, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	defer p.Stop()

	require.NoError(t, p.WaitForSync(ctx))
	require.Eventually(t, func() bool {
		return gpuAvailable(m) == 2
	}, testWaitTimeout, testPollInterval)
}

func TestPoller_StopDoesNotWaitForInFlightProbe(t *testing.T) {
	m := observability.NewMetrics()
	q := &blockingQuerier{entered: make(chan struct{}), release: make(chan struct{})}
	p := NewPoller(q, m, time.Hour)

	p.Start(context.Background())
	<-q.entered

	returned := make(chan struct{})
	go func() {
		p.Stop()
		p.Stop()
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(testWaitTimeout):
		t.Fatal("Stop blocked on an in-flight probe")
	}

	select {
	case <-p.Done():
		t.Fatal("loop exited while probe was still running")
	default:
	}

	close(q.release)
	select {
	case <-p.Done():
	case <-time.After(testWaitTimeout):
		t.Fatal("poller goroutine did not exit after Stop()")
	}
}

func TestPoller_ExitsOnContextCancel(t *testing.T) {
	p := NewPoller(&scriptedQuerier{}, observability.NewMetrics(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	require.NoError(t, p.WaitForSync(ctx))
	cancel()

	select {
	case <-p.Done():
	case <-time.After(testWaitTimeout):
		t.Fatal("poller goroutine did not exit after context cancel")
	}
}
