package metrics

import (
	"imgbudget/internal/transcoder"
)

// Transcode modes used as the "mode" label.
const (
	ModeDirect = "direct"
	ModeSearch = "search"
	ModeNone   = "none" // failed before a mode was chosen
)

// Modes lists every value of the "mode" label.
func Modes() []string {
	return []string{ModeDirect, ModeSearch, ModeNone}
}

// RecordTranscode records one call to Transcode. res may be nil when err is set.
func RecordTranscode(res *transcoder.Result, err error, seconds float64) {
	mode := ModeNone
	if res != nil {
		mode = ModeDirect
		if res.Searched {
			mode = ModeSearch
		}
	}

	TranscodeTotal.WithLabelValues(mode, transcoder.Kind(err)).Inc()
	TranscodeDuration.WithLabelValues(mode).Observe(seconds)

	if res == nil {
		return
	}

	TranscodeIterations.Observe(float64(res.Iterations))
	TranscodeInputBytes.Observe(float64(res.InputSize))
	TranscodeOutputBytes.Observe(float64(res.OutputSize))
	TranscodeQuality.Observe(float64(res.Quality))
	TranscodeSourceFormat.WithLabelValues(string(res.SourceFormat)).Inc()
	TranscodeTerminations.WithLabelValues(string(res.Termination)).Inc()
	if !res.BudgetMet {
		TranscodeBudgetMissed.Inc()
	}
}
