package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrPoolStopped is returned when the pool's gate reports that processing
// has been shut down.
var ErrPoolStopped = errors.New("worker pool stopped")

// Gate is consulted before a task takes a slot. Wait blocks while
// processing should be held back. It returns an error once processing will
// never resume or ctx ends. *memory.Monitor implements it.
type Gate interface {
	Wait(ctx context.Context) error
}

// Observer receives pool events. Durations are in seconds.
type Observer interface {
	ObserveWait(seconds float64)
	ObserveStart()
	ObserveDone(seconds float64, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveWait(float64)        {}
func (noopObserver) ObserveStart()              {}
func (noopObserver) ObserveDone(float64, error) {}

// Pool bounds the number of tasks running at once. It is a counting
// semaphore: tasks run on the caller's goroutine once a slot is free.
type Pool struct {
	slots    chan struct{}
	gate     Gate
	observer Observer

	inFlight atomic.Int64
	waiting  atomic.Int64
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithGate makes the pool wait on g before admitting tasks.
func WithGate(g Gate) PoolOption {
	return func(p *Pool) {
		p.gate = g
	}
}

// WithObserver reports wait and run times to o.
func WithObserver(o Observer) PoolOption {
	return func(p *Pool) {
		if o != nil {
			p.observer = o
		}
	}
}

// NewPool creates a pool with size slots. Sizes below 1 are raised to 1.
func NewPool(size int, opts ...PoolOption) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		slots:    make(chan struct{}, size),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the maximum number of concurrent tasks.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// InFlight returns the number of tasks currently running.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Waiting returns the number of tasks queued for a slot.
func (p *Pool) Waiting() int {
	return int(p.waiting.Load())
}

// Do runs fn once a slot is free. It returns ctx.Err() if ctx ends while
// waiting, ErrPoolStopped if the gate shut down, otherwise fn's error.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.gate != nil {
		if err := p.gate.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return ErrPoolStopped
		}
	}

	queued := time.Now()
	p.waiting.Add(1)
	select {
	case p.slots <- struct{}{}:
		p.waiting.Add(-1)
	case <-ctx.Done():
		p.waiting.Add(-1)
		return ctx.Err()
	}
	defer func() { <-p.slots }()

	p.observer.ObserveWait(time.Since(queued).Seconds())

	p.inFlight.Add(1)
	p.observer.ObserveStart()
	start := time.Now()

	err := fn(ctx)

	p.inFlight.Add(-1)
	p.observer.ObserveDone(time.Since(start).Seconds(), err)
	return err
}

// Each runs fn for indexes 0..n-1 concurrently through the pool and waits
// for all of them. The returned slice holds each task's error by index.
func (p *Pool) Each(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = p.Do(ctx, func(ctx context.Context) error {
				return fn(ctx, i)
			})
		}(i)
	}
	wg.Wait()

	return errs
}
