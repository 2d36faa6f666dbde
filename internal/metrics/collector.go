package metrics

import (
	"sync"
	"time"

	"imgbudget/internal/logging"
)

// StatsProvider supplies point-in-time gauges that are cheaper to sample
// than to track on every event.
type StatsProvider interface {
	GetStats() Stats
}

// StatsFunc adapts a function to StatsProvider.
type StatsFunc func() Stats

// GetStats calls f.
func (f StatsFunc) GetStats() Stats { return f() }

// Stats holds the sampled values.
type Stats struct {
	PoolSize    int
	PoolWaiting int64

	VipsMemoryBytes int64
	VipsAllocations int64
}

// Collector periodically samples a StatsProvider into gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopOnce      sync.Once
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the collection loop. It is safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	PoolWorkers.Set(float64(stats.PoolSize))
	PoolWaiting.Set(float64(stats.PoolWaiting))
	VipsMemoryBytes.Set(float64(stats.VipsMemoryBytes))
	VipsAllocations.Set(float64(stats.VipsAllocations))

	logging.Debug("Metrics collected: workers=%d, waiting=%d, vips_mem=%d",
		stats.PoolSize, stats.PoolWaiting, stats.VipsMemoryBytes)
}
