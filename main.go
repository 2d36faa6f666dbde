package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imgbudget/internal/handlers"
	"imgbudget/internal/logging"
	"imgbudget/internal/media"
	"imgbudget/internal/memory"
	"imgbudget/internal/metrics"
	"imgbudget/internal/middleware"
	"imgbudget/internal/startup"
	"imgbudget/internal/transcoder"
	"imgbudget/internal/workers"

	"github.com/gorilla/mux"
)

// collectInterval is how often pool and libvips gauges are sampled.
const collectInterval = 15 * time.Second

func main() {
	startTime := time.Now()

	// GOMEMLIMIT must be in place before anything allocates large rasters
	memResult := memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	// Optional libvips fallback decoder for HEIF/AVIF/JXL
	var opts []transcoder.Option
	if config.VipsFallback {
		err := media.InitVips()
		startup.LogVipsInit(true, err)
		if err == nil {
			opts = append(opts, transcoder.WithFallback(media.VipsDecoder{MaxPixels: config.Transcode.MaxInputPixels}))
		}
	} else {
		startup.LogVipsInit(false, nil)
	}
	trans := transcoder.New(opts...)

	// Memory backpressure gates new transcodes
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	pool := workers.NewPool(config.Workers,
		workers.WithGate(monitor),
		workers.WithObserver(metrics.NewPoolObserver()),
	)
	startup.LogTranscoderInit(config.Transcode, pool.Size())

	// Metrics
	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	collector := metrics.NewCollector(poolStats(pool), collectInterval)
	collector.Start()

	// Initialize handlers
	h := handlers.New(trans, pool, monitor, config)

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(router)

	// Apply compression middleware
	compressionConfig := middleware.DefaultCompressionConfig()
	handler := middleware.Compression(compressionConfig)(loggedHandler)

	// Create server
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	done := make(chan struct{})
	go handleShutdown(srv, metricsSrv, h, monitor, collector, config.VipsFallback, done)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}

	<-done
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Transcode API
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/transcode", h.Transcode).Methods("POST")
	api.HandleFunc("/transcode/meta", h.TranscodeMeta).Methods("POST")
	api.HandleFunc("/transcode/batch", h.TranscodeBatch).Methods("POST")

	return r
}

// newMetricsServer serves Prometheus metrics and a health check on
// METRICS_PORT.
func newMetricsServer(port string, h *handlers.Handlers) *http.Server {
	mx := http.NewServeMux()
	mx.Handle("/metrics", h.MetricsHandler())
	mx.HandleFunc("/health", h.HealthCheck)

	return &http.Server{
		Addr:              ":" + port,
		Handler:           mx,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

// poolStats samples the worker pool and libvips allocator for the collector.
func poolStats(pool *workers.Pool) metrics.StatsProvider {
	return metrics.StatsFunc(func() metrics.Stats {
		vipsBytes, vipsAllocs := media.VipsMemStats()
		return metrics.Stats{
			PoolSize:        pool.Size(),
			PoolWaiting:     int64(pool.Waiting()),
			VipsMemoryBytes: vipsBytes,
			VipsAllocations: vipsAllocs,
		}
	})
}

func handleShutdown(
	srv, metricsSrv *http.Server,
	h *handlers.Handlers,
	monitor *memory.Monitor,
	collector *metrics.Collector,
	vipsStarted bool,
	done chan<- struct{},
) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Marking server as draining")
	h.SetDraining()
	startup.LogShutdownStepComplete("Readiness probe failing")

	// Releases any request still blocked on the memory gate
	startup.LogShutdownStep("Stopping memory monitor")
	monitor.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped, in-flight transcodes finished")
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	if vipsStarted {
		startup.LogShutdownStep("Shutting down libvips")
		media.ShutdownVips()
		startup.LogShutdownStepComplete("libvips shut down")
	}

	startup.LogShutdownComplete()
}
