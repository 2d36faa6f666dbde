package handlers

import (
	"net/http"

	"imgbudget/internal/startup"
	"imgbudget/internal/transcoder"
)

// VersionResponse is the build information plus the active transcode settings.
type VersionResponse struct {
	startup.BuildInfo
	Transcode transcoder.Config `json:"transcode"`
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, VersionResponse{
		BuildInfo: startup.GetBuildInfo(),
		Transcode: h.config,
	})
}
