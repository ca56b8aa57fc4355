package pipeline

// run_limiter.go serializes pipeline runs.
//
// Runs share the output directory, so only one may be in flight. A trigger
// that finds the slot taken waits up to maxWait (zero means not at all)
// before failing with core.ErrRunInProgress. WaitForDrain lets shutdown
// block until the active run finishes.

import (
	"context"
	"sync"
	"time"

	"github.com/JonMunkholm/maintetl/internal/core"
)

// RunLimiter is a single-slot semaphore around Pipeline.Run.
type RunLimiter struct {
	slot    chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active bool
}

// NewRunLimiter creates a limiter. Negative waits are treated as zero.
func NewRunLimiter(maxWait time.Duration) *RunLimiter {
	if maxWait < 0 {
		maxWait = 0
	}
	return &RunLimiter{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire takes the run slot, waiting up to maxWait.
// The caller MUST call Release when the run completes.
func (l *RunLimiter) Acquire(ctx context.Context) error {
	if l.TryAcquire() {
		return nil
	}
	if l.maxWait == 0 {
		return core.ErrRunInProgress
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slot <- struct{}{}:
		l.setActive(true)
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return core.ErrRunInProgress
	}
}

// TryAcquire takes the slot without blocking.
func (l *RunLimiter) TryAcquire() bool {
	select {
	case l.slot <- struct{}{}:
		l.setActive(true)
		return true
	default:
		return false
	}
}

// Release frees the slot. Must be called exactly once per successful acquire.
func (l *RunLimiter) Release() {
	l.setActive(false)
	<-l.slot
}

// Busy reports whether a run holds the slot.
func (l *RunLimiter) Busy() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

func (l *RunLimiter) setActive(v bool) {
	l.mu.Lock()
	l.active = v
	l.mu.Unlock()
}

// WaitForDrain blocks until no run is active or ctx is done.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !l.Busy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
