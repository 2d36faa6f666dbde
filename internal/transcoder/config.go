package transcoder

import (
	"fmt"
	"math"
)

const (
	// MiB is one mebibyte in bytes.
	MiB = 1024 * 1024

	// DefaultBigThresholdBytes is the input size above which the search loop runs.
	DefaultBigThresholdBytes = 4 * MiB
	// DefaultTargetBudgetBytes is the desired maximum output size.
	DefaultTargetBudgetBytes = 1 * MiB
	// DefaultInitialQuality is the JPEG quality of the first search iteration.
	DefaultInitialQuality = 90
	// DefaultDirectQuality is the JPEG quality of the single direct pass.
	DefaultDirectQuality = 80
	// DefaultQualityFloor is the lowest quality the search loop will use.
	DefaultQualityFloor = 30
	// DefaultQualityStep is the quality decrement per failed iteration.
	DefaultQualityStep = 15
	// DefaultScaleDecay is the per-iteration linear dimension multiplier.
	DefaultScaleDecay = 0.8
	// DefaultMinDimensionPx is the smallest width or height the loop will produce.
	DefaultMinDimensionPx = 64
	// DefaultMaxIterations caps the search loop. It equals the largest
	// IterationBound any valid quality range can produce (100 down to 1 in
	// steps of 1), so with the default it never fires before the floor does.
	DefaultMaxIterations = 100
)

// Config controls a single transcode call. It is passed by value and never
// modified by the transcoder.
type Config struct {
	// BigThresholdBytes is the input size above which the search loop runs.
	// Inputs at or below it get one direct encode pass.
	BigThresholdBytes int64 `json:"big_threshold_bytes"`

	// TargetBudgetBytes is the desired maximum output size.
	TargetBudgetBytes int64 `json:"target_budget_bytes"`

	// InitialQuality is the quality of the first search iteration (1-100).
	InitialQuality int `json:"initial_quality"`

	// DirectQuality is the quality used for the direct pass (1-100).
	DirectQuality int `json:"direct_quality"`

	// QualityFloor is the minimum quality the search loop may use.
	QualityFloor int `json:"quality_floor"`

	// QualityStep is subtracted from the quality after each iteration that
	// misses the budget.
	QualityStep int `json:"quality_step"`

	// ScaleDecay multiplies the current width and height on every iteration.
	ScaleDecay float64 `json:"scale_decay"`

	// MinDimensionPx is the floor below which further downscale is refused.
	MinDimensionPx int `json:"min_dimension_px"`

	// MaxIterations caps the search loop. Exceeding it fails the call with
	// ErrBudgetUnreachable. A value below IterationBound makes the cap
	// reachable for inputs that never fit the budget.
	MaxIterations int `json:"max_iterations"`

	// MaxInputPixels rejects sources whose width*height exceeds it.
	// 0 disables the check.
	MaxInputPixels int64 `json:"max_input_pixels"`
}

// DefaultConfig returns the standard upload policy: inputs over 4 MiB are
// squeezed toward a 1 MiB budget.
func DefaultConfig() Config {
	return Config{
		BigThresholdBytes: DefaultBigThresholdBytes,
		TargetBudgetBytes: DefaultTargetBudgetBytes,
		InitialQuality:    DefaultInitialQuality,
		DirectQuality:     DefaultDirectQuality,
		QualityFloor:      DefaultQualityFloor,
		QualityStep:       DefaultQualityStep,
		ScaleDecay:        DefaultScaleDecay,
		MinDimensionPx:    DefaultMinDimensionPx,
		MaxIterations:     DefaultMaxIterations,
	}
}

// Validate reports the first setting that would make a transcode call
// misbehave. The returned error matches ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.BigThresholdBytes < 0:
		return invalidConfig("big_threshold_bytes must be >= 0, got %d", c.BigThresholdBytes)
	case c.TargetBudgetBytes < 1:
		return invalidConfig("target_budget_bytes must be >= 1, got %d", c.TargetBudgetBytes)
	case c.InitialQuality < 1 || c.InitialQuality > 100:
		return invalidConfig("initial_quality must be in [1, 100], got %d", c.InitialQuality)
	case c.DirectQuality < 1 || c.DirectQuality > 100:
		return invalidConfig("direct_quality must be in [1, 100], got %d", c.DirectQuality)
	case c.QualityFloor < 1 || c.QualityFloor > c.InitialQuality:
		return invalidConfig("quality_floor must be in [1, initial_quality=%d], got %d", c.InitialQuality, c.QualityFloor)
	case c.QualityStep < 1:
		return invalidConfig("quality_step must be >= 1, got %d", c.QualityStep)
	case math.IsNaN(c.ScaleDecay) || c.ScaleDecay <= 0 || c.ScaleDecay > 1:
		return invalidConfig("scale_decay must be in (0, 1], got %g", c.ScaleDecay)
	case c.MinDimensionPx < 1:
		return invalidConfig("min_dimension_px must be >= 1, got %d", c.MinDimensionPx)
	case c.MaxIterations < 1:
		return invalidConfig("max_iterations must be >= 1, got %d", c.MaxIterations)
	case c.MaxInputPixels < 0:
		return invalidConfig("max_input_pixels must be >= 0, got %d", c.MaxInputPixels)
	}
	return nil
}

// IterationBound is the worst-case number of encode passes the search loop
// makes before the quality floor stops it.
func (c Config) IterationBound() int {
	if c.QualityStep < 1 {
		return 0
	}
	span := c.InitialQuality - c.QualityFloor
	if span <= 0 {
		return 1
	}
	return (span+c.QualityStep-1)/c.QualityStep + 1
}

func invalidConfig(format string, args ...interface{}) error {
	return &Error{Op: "validate", Kind: ErrInvalidConfig, Err: fmt.Errorf(format, args...)}
}
