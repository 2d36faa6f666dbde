package handlers

import (
	"context"
	"errors"
	"net/http"

	"imgbudget/internal/transcoder"
	"imgbudget/internal/workers"
)

var (
	// errOverBudget refuses a best-effort result when REJECT_OVER_BUDGET is set.
	errOverBudget = errors.New("output exceeds byte budget at the quality floor")

	errNoFiles = errors.New("multipart request contains no file parts")
)

// badRequestError marks a malformed request as opposed to a bad image.
type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return "bad request: " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// errorKind labels err for the X-Error-Kind header.
func errorKind(err error) string {
	var bad *badRequestError
	switch {
	case errors.Is(err, errOverBudget):
		return "over_budget"
	case errors.As(err, &bad):
		return "bad_request"
	default:
		return transcoder.Kind(err)
	}
}

// statusFor maps a transcode or request error to an HTTP status code.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	var bad *badRequestError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, transcoder.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, transcoder.ErrCorruptInput), errors.Is(err, errOverBudget):
		return http.StatusUnprocessableEntity
	case errors.Is(err, transcoder.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, workers.ErrPoolStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
