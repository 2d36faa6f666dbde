// Package startup handles server configuration and lifecycle logging.
//
// # Configuration
//
// [LoadConfig] reads environment variables, logs every effective value in a
// CONFIGURATION block, and validates the transcode settings. Malformed
// values fall back to their defaults with a warning.
//
// Server:
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// Limits:
//   - MAX_UPLOAD_BYTES: Request body limit (default: 64 MiB)
//   - TRANSCODE_WORKERS: Concurrent transcodes (default: GOMAXPROCS)
//   - REJECT_OVER_BUDGET: Refuse results that missed the byte budget (default: false)
//   - VIPS_FALLBACK: Decode HEIF/AVIF and other formats through libvips (default: false)
//
// Transcoding (defaults from transcoder.DefaultConfig):
//   - BIG_THRESHOLD_BYTES, TARGET_BUDGET_BYTES
//   - INITIAL_QUALITY, DIRECT_QUALITY, QUALITY_FLOOR, QUALITY_STEP
//   - SCALE_DECAY, MIN_DIMENSION_PX, MAX_ITERATIONS, MAX_INPUT_PIXELS
//
// Memory limits (MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT) are applied by
// the memory package before LoadConfig runs; [LogMemoryConfig] reports the
// outcome.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo].
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//	startup.LogTranscoderInit(config.Transcode, config.Workers)
//
//	startup.LogServerStarted(startup.ServerConfig{
//	    Port:            config.Port,
//	    MetricsPort:     config.MetricsPort,
//	    MetricsEnabled:  config.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
//
//	startup.LogShutdownInitiated("SIGTERM")
//	startup.LogShutdownComplete()
package startup
