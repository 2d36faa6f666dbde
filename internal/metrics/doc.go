// Package metrics provides Prometheus instrumentation for imgbudget.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "imgbudget_". The server exposes them on a separate
// listener (METRICS_PORT) through promhttp.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: requests by method, path, and status
//   - HTTPRequestDuration: request duration by method and path
//   - HTTPRequestsInFlight: requests currently being served
//
// ## Transcode Metrics
//
// Recorded by [RecordTranscode] once per call:
//   - TranscodeTotal: calls by mode (direct, search, none) and outcome
//     (ok or the error kind)
//   - TranscodeDuration: wall time by mode
//   - TranscodeIterations, TranscodeQuality: how hard the search worked
//   - TranscodeInputBytes, TranscodeOutputBytes: size distributions
//   - TranscodeSourceFormat, TranscodeTerminations: successful calls by
//     source format and stop reason
//   - TranscodeBudgetMissed: best-effort results left above the budget
//
// ## Pool Metrics
//
// [NewPoolObserver] feeds PoolInFlight, PoolWaitDuration, PoolTasksTotal and
// PoolTaskDuration from the worker pool. The [Collector] samples PoolWorkers
// and PoolWaiting.
//
// ## Memory Metrics
//
// Set by the memory monitor: MemoryUsageRatio, MemoryPaused and
// MemoryGCPauses.
//
// ## libvips Metrics
//
// VipsFallbackDecodes counts decodes handed to libvips. The [Collector]
// samples VipsMemoryBytes and VipsAllocations when libvips is loaded.
//
// # Initialization
//
// [InitializeMetrics] pre-populates every label combination so dashboards
// and alerts see zero values from the first scrape instead of missing series.
package metrics
