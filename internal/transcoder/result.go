package transcoder

import (
	"fmt"

	"imgbudget/internal/mediatypes"
)

// Result is the outcome of a successful transcode. Output is always JPEG.
type Result struct {
	Output []byte `json:"-"`

	InputSize  int64 `json:"input_size"`
	OutputSize int64 `json:"output_size"`
	Quality    int   `json:"quality"`
	Width      int   `json:"width"`
	Height     int   `json:"height"`
	Iterations int   `json:"iterations"`

	SourceFormat mediatypes.Format `json:"source_format"`
	SourceWidth  int               `json:"source_width"`
	SourceHeight int               `json:"source_height"`
	Scale        float64           `json:"scale"`

	// Searched is true when the input exceeded BigThresholdBytes.
	Searched    bool        `json:"searched"`
	Termination Termination `json:"termination"`

	// BudgetMet is false when the loop gave up at the quality floor with
	// output still larger than TargetBudgetBytes.
	BudgetMet bool `json:"budget_met"`
}

func newResult(raw []byte, src *decoded, st *searchState, term Termination, cfg Config) *Result {
	sb := src.raster.Bounds()
	b := st.raster.Bounds()

	scale := 1.0
	if sb.Dx() > 0 {
		scale = float64(b.Dx()) / float64(sb.Dx())
	}

	return &Result{
		Output:       st.output,
		InputSize:    int64(len(raw)),
		OutputSize:   int64(len(st.output)),
		Quality:      st.quality,
		Width:        b.Dx(),
		Height:       b.Dy(),
		Iterations:   st.iterations,
		SourceFormat: src.format,
		SourceWidth:  sb.Dx(),
		SourceHeight: sb.Dy(),
		Scale:        scale,
		Searched:     term != TerminationDirect,
		Termination:  term,
		BudgetMet:    int64(len(st.output)) <= cfg.TargetBudgetBytes,
	}
}

// Summary renders the result on one line.
func (r *Result) Summary() string {
	return fmt.Sprintf("%s %dx%d -> jpeg %dx%d q=%d, %d -> %d bytes, %d iteration(s), %s",
		r.SourceFormat, r.SourceWidth, r.SourceHeight,
		r.Width, r.Height, r.Quality,
		r.InputSize, r.OutputSize, r.Iterations, r.Termination)
}
