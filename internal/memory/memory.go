package memory

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"imgbudget/internal/logging"
	"imgbudget/internal/metrics"
)

// Config holds the watermarks that gate new transcodes.
type Config struct {
	// LimitBytes is the soft limit to measure against (0 = use GOMEMLIMIT)
	LimitBytes int64

	// ResumeRatio is the usage ratio below which a paused monitor resumes (0.0-1.0)
	ResumeRatio float64

	// PauseRatio is the usage ratio at which new transcodes are held back (0.0-1.0)
	PauseRatio float64

	// CheckInterval is how often heap usage is sampled
	CheckInterval time.Duration
}

// DefaultConfig returns the watermarks used by the server.
func DefaultConfig() Config {
	return Config{
		ResumeRatio:   0.7,
		PauseRatio:    0.85,
		CheckInterval: 2 * time.Second,
	}
}

// Monitor samples heap usage and holds back new transcodes while usage is
// above PauseRatio. Each decoded raster is width*height*4 bytes, so a burst
// of large uploads can exhaust the heap well before the body limit does.
type Monitor struct {
	config Config
	limit  int64
	sample func() uint64

	mu      sync.RWMutex
	current uint64
	paused  bool
	resume  chan struct{}

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMonitor creates a monitor. A zero limit after consulting GOMEMLIMIT
// disables backpressure.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if goMemLimit := debug.SetMemoryLimit(-1); goMemLimit > 0 && goMemLimit < math.MaxInt64 {
			limit = goMemLimit
			logging.Info("Memory monitor using GOMEMLIMIT: %s", FormatBytes(limit))
		}
	}

	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, transcode backpressure disabled")
	}

	return &Monitor{
		config: config,
		limit:  limit,
		sample: heapAlloc,
		resume: make(chan struct{}),
		stop:   make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

// Start begins sampling in the background. It is a no-op without a limit.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}
	go m.loop()
}

// Stop ends sampling and releases any callers blocked in Wait.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) loop() {
	interval := m.config.CheckInterval
	if interval <= 0 {
		interval = DefaultConfig().CheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) check() {
	alloc := m.sample()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = alloc
	if m.limit <= 0 {
		return
	}

	usage := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case usage >= m.config.PauseRatio && !m.paused:
		logging.Warn("Memory critical (%.1f%% of %s), holding new transcodes", usage*100, FormatBytes(m.limit))
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()
	case usage < m.config.ResumeRatio && m.paused:
		logging.Info("Memory recovered (%.1f%% of %s), resuming transcodes", usage*100, FormatBytes(m.limit))
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// Wait blocks while the monitor is paused. It returns ctx.Err() on
// cancellation and ErrStopped if the monitor stops first. It implements
// workers.Gate.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.RLock()
	if !m.paused {
		m.mu.RUnlock()
		return nil
	}
	resume := m.resume
	m.mu.RUnlock()

	logging.Debug("Transcode waiting for memory to recover")
	select {
	case <-resume:
		return nil
	case <-m.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsPaused reports whether new transcodes are being held back.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// GetStats returns the last sampled heap size, the limit and their ratio.
func (m *Monitor) GetStats() (current, limit int64, usage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	current = math.MaxInt64
	if m.current <= math.MaxInt64 {
		current = int64(m.current)
	}
	if m.limit > 0 {
		usage = float64(m.current) / float64(m.limit)
	}
	return current, m.limit, usage
}
