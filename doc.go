// Package main provides the entry point for the imgbudget server.
//
// imgbudget accepts uploaded images in any common format and returns a
// baseline JPEG. Inputs larger than BIG_THRESHOLD_BYTES are repeatedly
// downscaled and re-encoded at falling quality until the output fits
// TARGET_BUDGET_BYTES or the quality floor is reached.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or cgroup limits
//  2. Configuration Loading: Reads environment variables and validates the
//     transcode settings
//  3. Component Initialization:
//     - libvips: Optional fallback decoder for HEIF, AVIF and JPEG XL
//     - Memory Monitor: Holds back new transcodes while the heap is near
//     the limit
//     - Worker Pool: Caps concurrent transcodes at TRANSCODE_WORKERS
//     - Metrics Collector: Samples pool and libvips gauges
//  4. HTTP Server Setup: Configures routes, middleware, and starts server
//  5. Graceful Shutdown: Handles SIGINT/SIGTERM, drains in-flight work
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - POST /api/transcode: raw body in, JPEG out, metadata in X- headers
//     - POST /api/transcode/meta: same work, JSON result without the bytes
//     - POST /api/transcode/batch: multipart form, one JSON item per file
//     - /health, /healthz, /livez, /readyz, /version
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Health check endpoint (/health)
//
// # Environment Variables
//
//   - PORT, METRICS_PORT, METRICS_ENABLED
//   - LOG_LEVEL, LOG_HEALTH_CHECKS
//   - MAX_UPLOAD_BYTES, TRANSCODE_WORKERS, REJECT_OVER_BUDGET
//   - BIG_THRESHOLD_BYTES, TARGET_BUDGET_BYTES, INITIAL_QUALITY,
//     DIRECT_QUALITY, QUALITY_FLOOR, QUALITY_STEP, SCALE_DECAY,
//     MIN_DIMENSION_PX, MAX_ITERATIONS, MAX_INPUT_PIXELS
//   - VIPS_FALLBACK
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT
//
// # Graceful Shutdown
//
//  1. Mark the server draining so /readyz fails
//  2. Stop the memory monitor, releasing requests held at the gate
//  3. Shutdown main HTTP server (30s timeout, in-flight transcodes finish)
//  4. Stop metrics collector
//  5. Shutdown metrics server (if running)
//  6. Shut down libvips (if started)
//
// # Build Requirements
//
// The libvips fallback needs CGO and libvips at build time:
//
//	go build -o imgbudget .
//
// # Related Packages
//
//   - [imgbudget/internal/transcoder]: Size-budgeted JPEG transcoding
//   - [imgbudget/internal/handlers]: HTTP request handlers
//   - [imgbudget/internal/media]: libvips integration
//   - [imgbudget/internal/memory]: GOMEMLIMIT setup and backpressure
//   - [imgbudget/internal/middleware]: HTTP middleware (logging, metrics, gzip)
//   - [imgbudget/internal/startup]: Configuration and initialization
//   - [imgbudget/internal/workers]: Bounded worker pool
package main
