package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgbudget_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgbudget_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgbudget_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Transcode metrics
var (
	TranscodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgbudget_transcodes_total",
			Help: "Total number of transcodes by mode and outcome",
		},
		[]string{"mode", "outcome"}, // mode: direct, search, none
	)

	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "imgbudget_transcode_duration_seconds",
			Help:    "Transcode duration in seconds, decode included",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"},
	)

	TranscodeIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgbudget_transcode_iterations",
			Help:    "Encode attempts per successful transcode",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 12, 16, 32},
		},
	)

	TranscodeInputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgbudget_transcode_input_bytes",
			Help:    "Size of transcode inputs in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 10), // 64 KiB .. 32 MiB
		},
	)

	TranscodeOutputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgbudget_transcode_output_bytes",
			Help:    "Size of transcode outputs in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10), // 16 KiB .. 8 MiB
		},
	)

	TranscodeQuality = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgbudget_transcode_quality",
			Help:    "JPEG quality of transcode outputs",
			Buckets: []float64{30, 45, 60, 75, 80, 90, 100},
		},
	)

	TranscodeSourceFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgbudget_transcode_source_format_total",
			Help: "Successful transcodes by detected source format",
		},
		[]string{"format"},
	)

	TranscodeTerminations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgbudget_transcode_terminations_total",
			Help: "Successful transcodes by the reason the loop stopped",
		},
		[]string{"termination"},
	)

	TranscodeBudgetMissed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgbudget_transcode_budget_missed_total",
			Help: "Transcodes that stopped at the quality floor above the byte budget",
		},
	)
)

// Worker pool metrics
var (
	PoolWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgbudget_pool_workers",
			Help: "Maximum number of concurrent transcodes",
		},
	)

	PoolInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgbudget_pool_in_flight",
			Help: "Transcodes currently holding a pool slot",
		},
	)

	PoolWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgbudget_pool_waiting",
			Help: "Transcodes waiting for a pool slot",
		},
	)

	PoolWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgbudget_pool_wait_duration_seconds",
			Help:    "Time spent waiting for a pool slot",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
	)

	PoolTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgbudget_pool_tasks_total",
			Help: "Pool tasks by status",
		},
		[]string{"status"}, // ok, error, canceled
	)

	PoolTaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "imgbudget_pool_task_duration_seconds",
			Help:    "Time a task held its pool slot",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgbudget_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgbudget_memory_paused",
			Help: "Whether new transcodes are held back for memory (1 = paused, 0 = running)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "imgbudget_memory_gc_pauses_total",
			Help: "Number of times the memory monitor paused transcodes and forced a GC",
		},
	)
)

// libvips metrics
var (
	VipsFallbackDecodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "imgbudget_vips_fallback_decodes_total",
			Help: "Decodes handed to libvips because no Go codec matched",
		},
		[]string{"status"},
	)

	VipsMemoryBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgbudget_vips_memory_bytes",
			Help: "Memory currently allocated by libvips",
		},
	)

	VipsAllocations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "imgbudget_vips_allocations",
			Help: "Number of live libvips allocations",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "imgbudget_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
