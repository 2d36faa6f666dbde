package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride is the environment variable that fixes the worker count.
const EnvOverride = "TRANSCODE_WORKERS"

// Count returns the number of workers for a task type.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics: 1.0 for CPU-bound work
// such as decode/resize/encode, higher when tasks also wait on I/O.
//
// The limit parameter caps the worker count. Use 0 for no limit.
//
// Can be overridden with the TRANSCODE_WORKERS environment variable.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
// Transcoding is CPU-bound, so this sizes the transcode pool.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU), such as
// reading input files in the CLI.
func ForIO(limit int) int {
	return Count(2.0, limit)
}
