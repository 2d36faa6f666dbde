package handlers

import (
	"net/http"
	"runtime"
	"time"

	"imgbudget/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
	statusDraining = "draining"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Worker pool
	Workers        int   `json:"workers"`
	InFlight       int   `json:"inFlight"`
	Waiting        int   `json:"waiting"`
	BudgetBytes    int64 `json:"budgetBytes"`
	MaxUploadBytes int64 `json:"maxUploadBytes"`

	// Memory backpressure, present when a limit is configured
	MemoryPaused bool    `json:"memoryPaused"`
	MemoryUsage  float64 `json:"memoryUsage,omitempty"`
	MemoryLimit  int64   `json:"memoryLimit,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// status reports the service state and whether it should receive traffic.
// A memory pause keeps the service alive but steers new uploads elsewhere.
func (h *Handlers) status() (string, bool) {
	switch {
	case h.draining.Load():
		return statusDraining, false
	case h.memory != nil && h.memory.IsPaused():
		return statusDegraded, false
	default:
		return statusHealthy, true
	}
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	status, ready := h.status()

	response := HealthResponse{
		Status:         status,
		Ready:          ready,
		Version:        startup.Version,
		Uptime:         time.Since(h.started).Round(time.Second).String(),
		Workers:        h.pool.Size(),
		InFlight:       h.pool.InFlight(),
		Waiting:        h.pool.Waiting(),
		BudgetBytes:    h.config.TargetBudgetBytes,
		MaxUploadBytes: h.maxUploadBytes,
		GoVersion:      runtime.Version(),
		NumCPU:         runtime.NumCPU(),
		NumGoroutine:   runtime.NumGoroutine(),
	}

	if h.memory != nil {
		_, limit, usage := h.memory.GetStats()
		response.MemoryPaused = h.memory.IsPaused()
		response.MemoryUsage = usage
		response.MemoryLimit = limit
	}

	w.Header().Set("Content-Type", "application/json")
	// Only a draining server fails the full health check
	if status == statusDraining {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the service should accept uploads
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	status, ready := h.status()

	w.Header().Set("Content-Type", "application/json")
	if ready {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{"status": "ready"})
		return
	}

	w.WriteHeader(http.StatusServiceUnavailable)
	writeJSON(w, map[string]string{"status": status})
}
