package compute

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	apperrors "github.com/kubeadapt/sample-gpu-app/internal/errors"
)

// Limiter caps how many computations hold their matrices at the same time.
// An out-of-memory condition aborts the whole process rather than panicking,
// so peak allocation is bounded here instead of being recovered in Run.
type Limiter struct {
	sem   *semaphore.Weighted
	slots int
	wait  time.Duration
}

// NewLimiter allows slots concurrent computations. A caller that finds every
// slot taken queues for at most wait before giving up.
func NewLimiter(slots int, wait time.Duration) *Limiter {
	if slots < 1 {
		slots = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(slots)), slots: slots, wait: wait}
}

// Acquire reserves a slot. On success the returned release must be called
// once the computation's memory is no longer needed; calling it again is a
// no-op. On failure the error carries COMPUTE_SATURATED.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if !l.sem.TryAcquire(1) {
		waitCtx, cancel := context.WithTimeout(ctx, l.wait)
		defer cancel()
		if err := l.sem.Acquire(waitCtx, 1); err != nil {
			return nil, apperrors.New(apperrors.ErrComputeSaturated, "compute",
				fmt.Sprintf("all %d slots busy after %v", l.slots, l.wait), err)
		}
	}

	var once sync.Once
	return func() { once.Do(func() { l.sem.Release(1) }) }, nil
}
