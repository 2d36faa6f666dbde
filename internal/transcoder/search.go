package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/disintegration/imaging"
)

// Termination names the branch that ended a transcode.
type Termination string

const (
	// TerminationDirect means the input was small enough for a single pass.
	TerminationDirect Termination = "direct"
	// TerminationBudgetMet means the search loop produced output within budget.
	TerminationBudgetMet Termination = "budget_met"
	// TerminationQualityFloor means the search loop reached the quality floor
	// first. The output is the best effort and may exceed the budget.
	TerminationQualityFloor Termination = "quality_floor_reached"
)

// searchState is owned by one convergence loop and never escapes it.
type searchState struct {
	raster     *image.NRGBA
	quality    int
	output     []byte
	iterations int
}

// directPass encodes the source once, without resizing.
func directPass(src *image.NRGBA, cfg Config) (*searchState, error) {
	out, err := encodeJPEG(src, cfg.DirectQuality)
	if err != nil {
		return nil, err
	}
	return &searchState{
		raster:     src,
		quality:    cfg.DirectQuality,
		output:     out,
		iterations: 1,
	}, nil
}

// search alternates downscale and re-encode until the output fits the
// budget or the quality floor is reached. Dimensions compound from the
// previous iteration; pixels are always resampled from src.
func search(ctx context.Context, src *image.NRGBA, cfg Config) (*searchState, Termination, error) {
	st := &searchState{raster: src, quality: cfg.InitialQuality}

	for {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		b := st.raster.Bounds()
		w := nextDimension(b.Dx(), cfg.ScaleDecay, cfg.MinDimensionPx)
		h := nextDimension(b.Dy(), cfg.ScaleDecay, cfg.MinDimensionPx)
		if w <= 0 || h <= 0 {
			return nil, "", &Error{Op: "resize", Kind: ErrEncoderFailure, Err: fmt.Errorf("zero-area target %dx%d", w, h)}
		}
		if w != b.Dx() || h != b.Dy() {
			st.raster = imaging.Resize(src, w, h, imaging.Lanczos)
		}

		out, err := encodeJPEG(st.raster, st.quality)
		if err != nil {
			return nil, "", err
		}
		st.output = out
		st.iterations++

		if int64(len(st.output)) <= cfg.TargetBudgetBytes {
			return st, TerminationBudgetMet, nil
		}
		if st.quality <= cfg.QualityFloor {
			return st, TerminationQualityFloor, nil
		}

		if st.iterations >= cfg.MaxIterations {
			return nil, "", &Error{
				Op:   "search",
				Kind: ErrBudgetUnreachable,
				Err: fmt.Errorf("%d iterations, quality %d, %d bytes over budget %d",
					st.iterations, st.quality, len(st.output), cfg.TargetBudgetBytes),
			}
		}

		st.quality -= cfg.QualityStep
		if st.quality < cfg.QualityFloor {
			st.quality = cfg.QualityFloor
		}
	}
}

// nextDimension shrinks size by decay, truncating, and never goes below
// minPx. A side already smaller than minPx is left as is.
func nextDimension(size int, decay float64, minPx int) int {
	floor := minPx
	if size < floor {
		floor = size
	}
	next := int(float64(size) * decay)
	if next < floor {
		next = floor
	}
	return next
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &Error{Op: "encode", Kind: ErrEncoderFailure, Err: fmt.Errorf("zero-area raster %dx%d", b.Dx(), b.Dy())}
	}

	var buf bytes.Buffer
	buf.Grow(b.Dx() * b.Dy() / 4)
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &Error{Op: "encode", Kind: ErrEncoderFailure, Err: err}
	}
	return buf.Bytes(), nil
}
