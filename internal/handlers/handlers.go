package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"imgbudget/internal/startup"
	"imgbudget/internal/transcoder"
	"imgbudget/internal/workers"
)

// Transcoder runs one transcode. *transcoder.Transcoder implements it.
type Transcoder interface {
	Transcode(ctx context.Context, raw []byte, cfg transcoder.Config) (*transcoder.Result, error)
}

// MemoryStatus reports memory backpressure. *memory.Monitor implements it.
type MemoryStatus interface {
	IsPaused() bool
	GetStats() (current, limit int64, usage float64)
}

// Handlers serves the transcode API. Each request's transcode runs inside
// the shared worker pool.
type Handlers struct {
	transcoder Transcoder
	pool       *workers.Pool
	memory     MemoryStatus

	config           transcoder.Config
	maxUploadBytes   int64
	rejectOverBudget bool

	started  time.Time
	draining atomic.Bool
}

// New creates the handlers. mem may be nil when no memory limit is set.
func New(t Transcoder, pool *workers.Pool, mem MemoryStatus, config *startup.Config) *Handlers {
	return &Handlers{
		transcoder:       t,
		pool:             pool,
		memory:           mem,
		config:           config.Transcode,
		maxUploadBytes:   config.MaxUploadBytes,
		rejectOverBudget: config.RejectOverBudget,
		started:          time.Now(),
	}
}

// SetDraining marks the server as shutting down so readiness probes fail
// while in-flight transcodes finish.
func (h *Handlers) SetDraining() {
	h.draining.Store(true)
}
