package handlers

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"imgbudget/internal/logging"
	"imgbudget/internal/mediatypes"
	"imgbudget/internal/metrics"
	"imgbudget/internal/streaming"
	"imgbudget/internal/transcoder"

	"golang.org/x/crypto/blake2b"
)

// BatchItem is one entry of a batch response, in request part order.
type BatchItem struct {
	Field    string             `json:"field"`
	Filename string             `json:"filename,omitempty"`
	Status   int                `json:"status"`
	Result   *transcoder.Result `json:"result,omitempty"`
	Error    string             `json:"error,omitempty"`
	ETag     string             `json:"etag,omitempty"`
	Data     []byte             `json:"data,omitempty"`
}

// Transcode converts the request body to a JPEG within the byte budget.
// POST /api/transcode
func (h *Handlers) Transcode(w http.ResponseWriter, r *http.Request) {
	res, err := h.transcodeBody(w, r)
	if err != nil {
		h.writeTranscodeError(w, r, err)
		return
	}

	hdr := w.Header()
	setResultHeaders(hdr, res)
	hdr.Set("Content-Type", mediatypes.GetMimeType(mediatypes.OutputFormat))
	hdr.Set("Content-Length", strconv.Itoa(len(res.Output)))
	hdr.Set("ETag", etag(res.Output))
	hdr.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if err := streaming.WriteBody(r.Context(), w, res.Output, streaming.DefaultTimeoutWriterConfig()); err != nil {
		logging.Debug("Failed to send transcode output: %v", err)
	}
}

// TranscodeMeta runs the same transcode but returns only the result metadata.
// POST /api/transcode/meta
func (h *Handlers) TranscodeMeta(w http.ResponseWriter, r *http.Request) {
	res, err := h.transcodeBody(w, r)
	if err != nil {
		h.writeTranscodeError(w, r, err)
		return
	}

	setResultHeaders(w.Header(), res)
	w.Header().Set("ETag", etag(res.Output))
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, res)
}

// TranscodeBatch transcodes every file part of a multipart form
// concurrently through the worker pool.
// POST /api/transcode/batch
func (h *Handlers) TranscodeBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	parts, err := readFileParts(r)
	if err != nil {
		h.writeTranscodeError(w, r, err)
		return
	}

	items := make([]BatchItem, len(parts))
	h.pool.Each(r.Context(), len(parts), func(ctx context.Context, i int) error {
		items[i] = h.batchItem(ctx, parts[i])
		return nil
	})

	// Tasks that never got a slot leave a zero item behind
	for i := range items {
		if items[i].Status == 0 {
			err := r.Context().Err()
			if err == nil {
				err = context.Canceled
			}
			items[i] = BatchItem{Field: parts[i].field, Filename: parts[i].filename, Status: statusFor(err), Error: err.Error()}
		}
	}

	logging.Debug("Batch transcode finished: %d part(s)", len(items))
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, items)
}

func (h *Handlers) batchItem(ctx context.Context, p filePart) BatchItem {
	item := BatchItem{Field: p.field, Filename: p.filename}

	res, err := h.transcode(ctx, p.data)
	if err != nil {
		item.Status = statusFor(err)
		item.Error = err.Error()
		return item
	}

	item.Status = http.StatusOK
	item.Result = res
	item.ETag = etag(res.Output)
	item.Data = res.Output
	return item
}

// transcodeBody reads the size-limited body and transcodes it.
func (h *Handlers) transcodeBody(w http.ResponseWriter, r *http.Request) (*transcoder.Result, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	if err != nil {
		return nil, err
	}

	var res *transcoder.Result
	err = h.pool.Do(r.Context(), func(ctx context.Context) error {
		res, err = h.transcode(ctx, raw)
		return err
	})
	return res, err
}

// transcode runs one transcode, records it, and applies the over-budget
// policy. Callers hold a pool slot.
func (h *Handlers) transcode(ctx context.Context, raw []byte) (*transcoder.Result, error) {
	start := time.Now()
	res, err := h.transcoder.Transcode(ctx, raw, h.config)
	metrics.RecordTranscode(res, err, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	logging.Debug("Transcoded %s", res.Summary())

	if h.rejectOverBudget && !res.BudgetMet {
		return nil, errOverBudget
	}
	return res, nil
}

func (h *Handlers) writeTranscodeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
		logging.Error("Transcode failed for %s: %v", r.URL.Path, err)
	} else {
		logging.Debug("Transcode rejected (%d): %v", status, err)
	}

	w.Header().Set("X-Error-Kind", errorKind(err))
	writeJSONError(w, err.Error(), status)
}

// setResultHeaders exposes the result metadata as X- headers.
func setResultHeaders(h http.Header, res *transcoder.Result) {
	h.Set("X-Input-Size", strconv.FormatInt(res.InputSize, 10))
	h.Set("X-Output-Size", strconv.FormatInt(res.OutputSize, 10))
	h.Set("X-Quality", strconv.Itoa(res.Quality))
	h.Set("X-Width", strconv.Itoa(res.Width))
	h.Set("X-Height", strconv.Itoa(res.Height))
	h.Set("X-Iterations", strconv.Itoa(res.Iterations))
	h.Set("X-Termination", string(res.Termination))
	h.Set("X-Budget-Met", strconv.FormatBool(res.BudgetMet))
	h.Set("X-Source-Format", string(res.SourceFormat))
}

// etag is a strong validator over the output bytes.
func etag(output []byte) string {
	sum := blake2b.Sum256(output)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

type filePart struct {
	field    string
	filename string
	data     []byte
}

// readFileParts reads every part that carries a filename. Form fields
// without one are ignored.
func readFileParts(r *http.Request) ([]filePart, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, &badRequestError{err}
	}

	var parts []filePart
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &badRequestError{err}
		}

		if p.FileName() == "" {
			_ = p.Close()
			continue
		}

		data, err := readPart(p)
		if err != nil {
			return nil, &badRequestError{err}
		}
		parts = append(parts, filePart{field: p.FormName(), filename: p.FileName(), data: data})
	}

	if len(parts) == 0 {
		return nil, &badRequestError{errNoFiles}
	}
	return parts, nil
}

func readPart(p *multipart.Part) ([]byte, error) {
	defer p.Close()
	return io.ReadAll(p)
}
