package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingObserver struct {
	waits, starts, dones, failures atomic.Int64
}

func (o *countingObserver) ObserveWait(float64) { o.waits.Add(1) }
func (o *countingObserver) ObserveStart()       { o.starts.Add(1) }
func (o *countingObserver) ObserveDone(_ float64, err error) {
	o.dones.Add(1)
	if err != nil {
		o.failures.Add(1)
	}
}

type stoppedGate struct{}

func (stoppedGate) Wait(context.Context) error { return errors.New("stopped") }

type openGate struct{ calls atomic.Int64 }

func (g *openGate) Wait(context.Context) error {
	g.calls.Add(1)
	return nil
}

func TestNewPool_Size(t *testing.T) {
	tests := []struct {
		size     int
		expected int
	}{
		{4, 4},
		{1, 1},
		{0, 1},
		{-3, 1},
	}

	for _, tt := range tests {
		if got := NewPool(tt.size).Size(); got != tt.expected {
			t.Errorf("NewPool(%d).Size() = %d, want %d", tt.size, got, tt.expected)
		}
	}
}

func TestPool_LimitsConcurrency(t *testing.T) {
	const size = 3
	pool := NewPool(size)

	var current, peak atomic.Int64
	errs := pool.Each(context.Background(), 20, func(ctx context.Context, i int) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return nil
	})

	for i, err := range errs {
		if err != nil {
			t.Errorf("task %d: unexpected error %v", i, err)
		}
	}
	if peak.Load() > size {
		t.Errorf("Peak concurrency %d exceeded pool size %d", peak.Load(), size)
	}
	if pool.InFlight() != 0 || pool.Waiting() != 0 {
		t.Errorf("Expected idle pool, got inFlight=%d waiting=%d", pool.InFlight(), pool.Waiting())
	}
}

func TestPool_EachErrorsByIndex(t *testing.T) {
	pool := NewPool(2)
	boom := errors.New("boom")

	errs := pool.Each(context.Background(), 5, func(ctx context.Context, i int) error {
		if i%2 == 1 {
			return boom
		}
		return nil
	})

	if len(errs) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(errs))
	}
	for i, err := range errs {
		if i%2 == 1 && !errors.Is(err, boom) {
			t.Errorf("task %d: expected boom, got %v", i, err)
		}
		if i%2 == 0 && err != nil {
			t.Errorf("task %d: expected nil, got %v", i, err)
		}
	}
}

func TestPool_CanceledWhileWaiting(t *testing.T) {
	pool := NewPool(1)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = pool.Do(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	err := pool.Do(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})

	close(release)
	wg.Wait()

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if ran {
		t.Error("Task should not run after its context expired")
	}
}

func TestPool_CanceledBeforeStart(t *testing.T) {
	pool := NewPool(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pool.Do(ctx, func(ctx context.Context) error {
		t.Error("Task should not run with a canceled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// pausedGate blocks until ctx ends.
type pausedGate struct{}

func (pausedGate) Wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestPool_Gate(t *testing.T) {
	t.Run("paused gate honours context", func(t *testing.T) {
		pool := NewPool(1, WithGate(pausedGate{}))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := pool.Do(ctx, func(context.Context) error {
			t.Error("task should not run while the gate is paused")
			return nil
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Expected context.DeadlineExceeded, got %v", err)
		}
	})

	t.Run("stopped gate rejects", func(t *testing.T) {
		pool := NewPool(1, WithGate(stoppedGate{}))

		err := pool.Do(context.Background(), func(ctx context.Context) error { return nil })
		if !errors.Is(err, ErrPoolStopped) {
			t.Errorf("Expected ErrPoolStopped, got %v", err)
		}
	})

	t.Run("open gate consulted per task", func(t *testing.T) {
		gate := &openGate{}
		pool := NewPool(2, WithGate(gate))

		pool.Each(context.Background(), 4, func(ctx context.Context, i int) error { return nil })

		if gate.calls.Load() != 4 {
			t.Errorf("Expected 4 gate checks, got %d", gate.calls.Load())
		}
	})
}

func TestPool_Observer(t *testing.T) {
	obs := &countingObserver{}
	pool := NewPool(2, WithObserver(obs))

	pool.Each(context.Background(), 6, func(ctx context.Context, i int) error {
		if i == 0 {
			return errors.New("fail")
		}
		return nil
	})

	if obs.waits.Load() != 6 || obs.starts.Load() != 6 || obs.dones.Load() != 6 {
		t.Errorf("Expected 6 of each event, got waits=%d starts=%d dones=%d",
			obs.waits.Load(), obs.starts.Load(), obs.dones.Load())
	}
	if obs.failures.Load() != 1 {
		t.Errorf("Expected 1 failure, got %d", obs.failures.Load())
	}
}

func TestPool_NilObserverIgnored(t *testing.T) {
	pool := NewPool(1, WithObserver(nil))

	if err := pool.Do(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("Unexpected error %v", err)
	}
}
