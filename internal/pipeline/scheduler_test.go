package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingRunner struct {
	runs atomic.Int32
	done chan struct{}
	want int32
}

func (r *countingRunner) Run(context.Context) *RunReport {
	if r.runs.Add(1) == r.want {
		close(r.done)
	}
	return &RunReport{RunID: "test", Status: StatusSuccess}
}

func TestStartScheduler_RunsOnInterval(t *testing.T) {
	runner := &countingRunner{done: make(chan struct{}), want: 2}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		StartScheduler(ctx, runner, NewRunLimiter(0), 10*time.Millisecond)
		close(stopped)
	}()

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not run twice")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestStartScheduler_DisabledReturnsImmediately(t *testing.T) {
	runner := &countingRunner{done: make(chan struct{}), want: 1}

	StartScheduler(context.Background(), runner, nil, 0)

	if n := runner.runs.Load(); n != 0 {
		t.Errorf("runs = %d, want 0", n)
	}
}

func TestRunScheduled_SkipsWhenBusy(t *testing.T) {
	runner := &countingRunner{done: make(chan struct{}), want: 1}
	limiter := NewRunLimiter(0)
	limiter.TryAcquire()
	defer limiter.Release()

	runScheduled(context.Background(), runner, limiter)

	if n := runner.runs.Load(); n != 0 {
		t.Errorf("runs = %d, want 0 while another run holds the slot", n)
	}
}

func TestRunScheduled_ReleasesSlot(t *testing.T) {
	runner := &countingRunner{done: make(chan struct{}), want: 1}
	limiter := NewRunLimiter(0)

	runScheduled(context.Background(), runner, limiter)

	if limiter.Busy() {
		t.Error("slot still held after scheduled run")
	}
	if n := runner.runs.Load(); n != 1 {
		t.Errorf("runs = %d, want 1", n)
	}
}
