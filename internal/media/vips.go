package media

import (
	"sync"

	"imgbudget/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips starts libvips once per process. libvips cannot be restarted
// after ShutdownVips.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging before Startup so LOG_LEVEL applies to its
	// startup messages too
	level, handler := vipsLogging(logging.GetLevel())
	vips.LoggingSettings(handler, level)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,                // the worker pool provides the parallelism
		MaxCacheMem:      32 * 1024 * 1024, // decoded inputs are never reused
		MaxCacheSize:     16,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// vipsLogging maps the application log level onto libvips' level and a
// handler that forwards to the logging package.
func vipsLogging(appLevel logging.LogLevel) (vips.LogLevel, vips.LoggingHandlerFunction) {
	forward := func(min vips.LogLevel) vips.LoggingHandlerFunction {
		return func(domain string, level vips.LogLevel, msg string) {
			if level > min {
				return
			}
			switch level {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			default:
				logging.Debug("[%s] %s", domain, msg)
			}
		}
	}

	switch appLevel {
	case logging.LevelDebug:
		return vips.LogLevelInfo, forward(vips.LogLevelDebug)
	case logging.LevelWarn:
		return vips.LogLevelError, forward(vips.LogLevelError)
	case logging.LevelError:
		return vips.LogLevelCritical, forward(vips.LogLevelCritical)
	default:
		return vips.LogLevelWarning, forward(vips.LogLevelWarning)
	}
}

// ShutdownVips releases libvips resources.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// VipsMemStats returns libvips' current allocation size and count. Both are
// zero when libvips is not loaded.
func VipsMemStats() (bytes, allocations int64) {
	if !IsVipsAvailable() {
		return 0, 0
	}
	var stats vips.MemoryStats
	vips.ReadVipsMemStats(&stats)
	return stats.Mem, stats.Allocs
}
