package memory

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"imgbudget/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go heap.
// The rest is left for libvips buffers and goroutine stacks.
const DefaultMemoryRatio = 0.85

// ErrStopped is returned by Monitor.Wait when the monitor stops while a
// caller is waiting.
var ErrStopped = errors.New("memory monitor stopped")

// ConfigResult reports what ConfigureFromEnv did.
type ConfigResult struct {
	Configured bool

	// Source is "GOMEMLIMIT", "MEMORY_LIMIT", or "none"
	Source string

	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// String renders the result for the startup banner.
func (r ConfigResult) String() string {
	switch r.Source {
	case "GOMEMLIMIT":
		return fmt.Sprintf("GOMEMLIMIT=%s", FormatBytes(r.GoMemLimit))
	case "MEMORY_LIMIT":
		return fmt.Sprintf("GOMEMLIMIT=%s (%.0f%% of %s)", FormatBytes(r.GoMemLimit), r.Ratio*100, FormatBytes(r.ContainerLimit))
	default:
		return "unlimited"
	}
}

// ConfigureFromEnv sets the runtime memory limit from the environment.
// Call it before any large allocation.
//
//   - GOMEMLIMIT: honoured as-is when set
//   - MEMORY_LIMIT: container limit in bytes (Kubernetes Downward API)
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the heap (default 0.85)
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return ConfigResult{Source: "none"}
	}

	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring MEMORY_LIMIT %q: not a positive byte count", raw)
		return ConfigResult{Source: "none"}
	}

	ratio := parseRatio(os.Getenv("MEMORY_RATIO"))
	limit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(limit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		FormatBytes(limit), ratio*100, FormatBytes(containerLimit))

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     limit,
		Ratio:          ratio,
	}
}

func parseRatio(s string) float64 {
	if s == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(s, 64)
	if err != nil {
		logging.Warn("Failed to parse MEMORY_RATIO %q: %v, using default %.2f", s, err, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	if ratio <= 0 || ratio > 1 {
		logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0], using default %.2f", s, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

// FormatBytes renders a byte count with binary units, e.g. "1.5 MiB".
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
