package compute

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kubeadapt/sample-gpu-app/internal/errors"
)

func TestLimiter_FailsWhenSaturated(t *testing.T) {
	l := NewLimiter(2, 10*time.Millisecond)

	r1, err := l.Acquire(context.Background())
	require.NoError(t, err)
	r2, err := l.Acquire(context.Background())
	require.NoError(t, err)

	_, err = l.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrComputeSaturated, apperrors.CodeOf(err))

	r1()
	r3, err := l.Acquire(context.Background())
	require.NoError(t, err)
	r2()
	r3()
}

func TestLimiter_QueuedCallerGetsFreedSlot(t *testing.T) {
	l := NewLimiter(1, 5*time.Second)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)

	got := make(chan error, 1)
	go func() {
		r, err := l.Acquire(context.Background())
		if err == nil {
			r()
		}
		got <- err
	}()

	time.Sleep(20 * time.Millisecond)
	release()

	select {
	case err := <-got:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("queued Acquire never returned")
	}
}

func TestLimiter_CanceledContextStopsWaiting(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx)
	assert.Equal(t, apperrors.ErrComputeSaturated, apperrors.CodeOf(err))
}

func TestLimiter_ReleaseIsIdempotent(t *testing.T) {
	l := NewLimiter(1, 10*time.Millisecond)

	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	release()
	release()

	// A double release must not have created a second slot.
	r1, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer r1()
	_, err = l.Acquire(context.Background())
	assert.Error(t, err)
}
