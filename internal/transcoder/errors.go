package transcoder

import (
	"context"
	"errors"
)

// Sentinel errors identifying each failure class. Every error returned by
// Transcode matches exactly one of them via errors.Is, except for context
// cancellation which is returned as ctx.Err().
var (
	// ErrUnsupportedFormat means no registered codec recognised the input.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrCorruptInput means the format was recognised but the payload could
	// not be parsed.
	ErrCorruptInput = errors.New("corrupt image data")

	// ErrImageTooLarge means the source exceeds Config.MaxInputPixels.
	ErrImageTooLarge = errors.New("image exceeds pixel limit")

	// ErrEncoderFailure means the JPEG encoder rejected the raster.
	ErrEncoderFailure = errors.New("encoder failure")

	// ErrBudgetUnreachable means the search loop hit Config.MaxIterations
	// without reaching either stop condition.
	ErrBudgetUnreachable = errors.New("byte budget unreachable within iteration limit")

	// ErrInvalidConfig means Config.Validate rejected the configuration.
	ErrInvalidConfig = errors.New("invalid transcode config")
)

// Error records the stage that failed, the failure class and the cause.
type Error struct {
	Op   string // "validate", "decode", "resize", "encode", "search"
	Kind error  // one of the sentinel errors above
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the failure class and the underlying cause to
// errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Kind returns a short, stable label for err, suitable for metric labels.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrCorruptInput):
		return "corrupt_input"
	case errors.Is(err, ErrImageTooLarge):
		return "image_too_large"
	case errors.Is(err, ErrEncoderFailure):
		return "encoder_failure"
	case errors.Is(err, ErrBudgetUnreachable):
		return "budget_unreachable"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "unknown"
	}
}

// Kinds lists every label Kind can return.
func Kinds() []string {
	return []string{
		"ok", "unsupported_format", "corrupt_input", "image_too_large",
		"encoder_failure", "budget_unreachable", "invalid_config", "canceled", "unknown",
	}
}
