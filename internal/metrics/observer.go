package metrics

import (
	"context"
	"errors"

	"imgbudget/internal/workers"
)

// poolObserver implements workers.Observer using the pool metrics declared
// in this package.
type poolObserver struct{}

// NewPoolObserver creates an observer that records worker pool metrics.
func NewPoolObserver() workers.Observer {
	return poolObserver{}
}

func (poolObserver) ObserveWait(seconds float64) {
	PoolWaitDuration.Observe(seconds)
}

func (poolObserver) ObserveStart() {
	PoolInFlight.Inc()
}

func (poolObserver) ObserveDone(seconds float64, err error) {
	PoolInFlight.Dec()
	PoolTaskDuration.Observe(seconds)
	PoolTasksTotal.WithLabelValues(taskStatus(err)).Inc()
}

func taskStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
