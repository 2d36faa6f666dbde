package transcoder

import (
	"context"
)

// Transcoder runs the decode, search and result stages. It holds no
// per-call state, so one value can serve any number of concurrent calls.
type Transcoder struct {
	fallback Decoder
}

// Option configures a Transcoder.
type Option func(*Transcoder)

// WithFallback sets a decoder used when no registered Go codec recognises
// the input.
func WithFallback(d Decoder) Option {
	return func(t *Transcoder) {
		t.fallback = d
	}
}

// New creates a Transcoder.
func New(opts ...Option) *Transcoder {
	t := &Transcoder{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcode compresses raw into a JPEG within cfg's byte budget.
//
// Inputs no larger than cfg.BigThresholdBytes are encoded once at
// cfg.DirectQuality. Larger inputs enter the search loop, which shrinks and
// re-encodes until the output fits cfg.TargetBudgetBytes or the quality
// reaches cfg.QualityFloor. In the latter case the last output is returned
// even if it is over budget, with Result.BudgetMet set to false.
//
// raw is only read. ctx is checked between search iterations.
func (t *Transcoder) Transcode(ctx context.Context, raw []byte, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := decode(raw, cfg.MaxInputPixels, t.fallback)
	if err != nil {
		return nil, err
	}

	if int64(len(raw)) <= cfg.BigThresholdBytes {
		st, err := directPass(src.raster, cfg)
		if err != nil {
			return nil, err
		}
		return newResult(raw, src, st, TerminationDirect, cfg), nil
	}

	st, term, err := search(ctx, src.raster, cfg)
	if err != nil {
		return nil, err
	}
	return newResult(raw, src, st, term, cfg), nil
}

// Transcode runs a Transcoder with no fallback decoder.
func Transcode(ctx context.Context, raw []byte, cfg Config) (*Result, error) {
	return New().Transcode(ctx, raw, cfg)
}
