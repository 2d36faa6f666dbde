package startup

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"imgbudget/internal/logging"
	"imgbudget/internal/memory"
	"imgbudget/internal/transcoder"
	"imgbudget/internal/workers"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// DefaultMaxUploadBytes caps request bodies when MAX_UPLOAD_BYTES is unset.
const DefaultMaxUploadBytes = 64 * transcoder.MiB

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all server configuration
type Config struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	MaxUploadBytes   int64
	Workers          int
	RejectOverBudget bool
	VipsFallback     bool

	Transcode transcoder.Config
}

// LoadConfig loads configuration from environment variables. Malformed
// values fall back to their defaults with a warning; a transcode
// configuration that fails validation is an error.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config := &Config{
		Port:             getEnv("PORT", "8080"),
		MetricsPort:      getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:  getEnvBool("LOG_HEALTH_CHECKS", true),
		MaxUploadBytes:   getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		Workers:          workers.ForCPU(0),
		RejectOverBudget: getEnvBool("REJECT_OVER_BUDGET", false),
		VipsFallback:     getEnvBool("VIPS_FALLBACK", false),
		Transcode:        loadTranscodeConfig(),
	}

	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	logging.Info("  MAX_UPLOAD_BYTES:    %s", memory.FormatBytes(config.MaxUploadBytes))
	logging.Info("  TRANSCODE_WORKERS:   %d", config.Workers)
	logging.Info("  REJECT_OVER_BUDGET:  %v", config.RejectOverBudget)
	logging.Info("  VIPS_FALLBACK:       %v", config.VipsFallback)

	if config.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", config.MaxUploadBytes)
	}
	if err := config.Transcode.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transcode configuration: %w", err)
	}

	return config, nil
}

func loadTranscodeConfig() transcoder.Config {
	d := transcoder.DefaultConfig()
	return transcoder.Config{
		BigThresholdBytes: getEnvInt64("BIG_THRESHOLD_BYTES", d.BigThresholdBytes),
		TargetBudgetBytes: getEnvInt64("TARGET_BUDGET_BYTES", d.TargetBudgetBytes),
		InitialQuality:    getEnvInt("INITIAL_QUALITY", d.InitialQuality),
		DirectQuality:     getEnvInt("DIRECT_QUALITY", d.DirectQuality),
		QualityFloor:      getEnvInt("QUALITY_FLOOR", d.QualityFloor),
		QualityStep:       getEnvInt("QUALITY_STEP", d.QualityStep),
		ScaleDecay:        getEnvFloat("SCALE_DECAY", d.ScaleDecay),
		MinDimensionPx:    getEnvInt("MIN_DIMENSION_PX", d.MinDimensionPx),
		MaxIterations:     getEnvInt("MAX_ITERATIONS", d.MaxIterations),
		MaxInputPixels:    getEnvInt64("MAX_INPUT_PIXELS", d.MaxInputPixels),
	}
}

// LogMemoryConfig logs the outcome of memory.ConfigureFromEnv
func LogMemoryConfig(result memory.ConfigResult) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if !result.Configured {
		logging.Info("  Memory limit: not configured (set MEMORY_LIMIT to enable backpressure)")
		return
	}
	logging.Info("  Memory limit: %s (source: %s)", result, result.Source)
}

// LogTranscoderInit logs the effective transcode settings
func LogTranscoderInit(cfg transcoder.Config, poolSize int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Direct path:     inputs <= %s encode once at q=%d",
		memory.FormatBytes(cfg.BigThresholdBytes), cfg.DirectQuality)
	logging.Info("  Byte budget:     %s", memory.FormatBytes(cfg.TargetBudgetBytes))
	logging.Info("  Quality search:  %d -> %d, step %d", cfg.InitialQuality, cfg.QualityFloor, cfg.QualityStep)
	logging.Info("  Scale decay:     %.2f per iteration, min %dpx", cfg.ScaleDecay, cfg.MinDimensionPx)
	logging.Info("  Iteration bound: %d (ceiling %d)", cfg.IterationBound(), cfg.MaxIterations)
	if cfg.MaxInputPixels > 0 {
		logging.Info("  Pixel limit:     %d", cfg.MaxInputPixels)
	}
	logging.Info("  Worker pool:     %d slot(s)", poolSize)
}

// LogVipsInit logs whether the libvips fallback decoder is active
func LogVipsInit(requested bool, err error) {
	switch {
	case !requested:
		logging.Info("  libvips fallback: DISABLED (set VIPS_FALLBACK=true for HEIF/AVIF)")
	case err != nil:
		logging.Warn("  libvips fallback: FAILED (%v), only native formats accepted", err)
	default:
		logging.Info("  [OK] libvips fallback enabled")
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Transcode:     POST http://0.0.0.0:%s/api/transcode", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
    _                 __              __           __
   (_)___ ___  ____ _/ /_  __  ______/ /___ ____  / /_
  / / __ '__ \/ __ '/ __ \/ / / / __  / __ '/ _ \/ __/
 / / / / / / / /_/ / /_/ / /_/ / /_/ / /_/ /  __/ /_
/_/_/ /_/ /_/\__, /_.___/\__,_/\__,_/\__, /\___/\__/
            /____/                  /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid number for %s: %q, using default: %g", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
