package metrics

import (
	"imgbudget/internal/mediatypes"
	"imgbudget/internal/transcoder"
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, mode := range Modes() {
		TranscodeDuration.WithLabelValues(mode)
		for _, kind := range transcoder.Kinds() {
			TranscodeTotal.WithLabelValues(mode, kind)
		}
	}

	for _, format := range mediatypes.AllFormats() {
		TranscodeSourceFormat.WithLabelValues(string(format))
	}

	for _, term := range []transcoder.Termination{
		transcoder.TerminationDirect,
		transcoder.TerminationBudgetMet,
		transcoder.TerminationQualityFloor,
	} {
		TranscodeTerminations.WithLabelValues(string(term))
	}

	for _, status := range []string{"ok", "error", "canceled"} {
		PoolTasksTotal.WithLabelValues(status)
	}

	for _, status := range []string{"ok", "error"} {
		VipsFallbackDecodes.WithLabelValues(status)
	}
}
