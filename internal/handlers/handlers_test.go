package handlers

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"imgbudget/internal/mediatypes"
	"imgbudget/internal/startup"
	"imgbudget/internal/transcoder"
	"imgbudget/internal/workers"

	"golang.org/x/crypto/blake2b"
)

// fakeTranscoder returns a canned result or error and counts calls.
type fakeTranscoder struct {
	mu    sync.Mutex
	calls int
	res   *transcoder.Result
	err   error
}

func (f *fakeTranscoder) Transcode(_ context.Context, raw []byte, _ transcoder.Config) (*transcoder.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.InputSize = int64(len(raw))
	return &res, nil
}

type fakeMemory struct {
	paused bool
}

func (m fakeMemory) IsPaused() bool { return m.paused }
func (m fakeMemory) GetStats() (int64, int64, float64) {
	return 900, 1000, 0.9
}

func testConfig() *startup.Config {
	return &startup.Config{
		MaxUploadBytes: 8 * transcoder.MiB,
		Workers:        2,
		Transcode:      transcoder.DefaultConfig(),
	}
}

func newTestHandlers(tc Transcoder, mem MemoryStatus, modify func(*startup.Config)) *Handlers {
	cfg := testConfig()
	if modify != nil {
		modify(cfg)
	}
	return New(tc, workers.NewPool(cfg.Workers), mem, cfg)
}

func gradientPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}
	return buf.Bytes()
}

func TestTranscode_Success(t *testing.T) {
	h := newTestHandlers(transcoder.New(), nil, nil)
	raw := gradientPNG(t, 64, 48)

	req := httptest.NewRequest(http.MethodPost, "/api/transcode", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.Transcode(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Expected Content-Type image/jpeg, got %q", ct)
	}

	headers := map[string]string{
		"X-Input-Size":    strconv.Itoa(len(raw)),
		"X-Quality":       "80",
		"X-Width":         "64",
		"X-Height":        "48",
		"X-Iterations":    "1",
		"X-Termination":   "direct",
		"X-Budget-Met":    "true",
		"X-Source-Format": "png",
		"X-Output-Size":   strconv.Itoa(rec.Body.Len()),
		"Content-Length":  strconv.Itoa(rec.Body.Len()),
	}
	for k, want := range headers {
		if got := rec.Header().Get(k); got != want {
			t.Errorf("Expected %s=%q, got %q", k, want, got)
		}
	}

	sum := blake2b.Sum256(rec.Body.Bytes())
	if want := `"` + hex.EncodeToString(sum[:]) + `"`; rec.Header().Get("ETag") != want {
		t.Errorf("Expected ETag %s, got %s", want, rec.Header().Get("ETag"))
	}

	if _, err := jpeg.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Errorf("Response body is not a valid JPEG: %v", err)
	}
}

func TestTranscode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"unsupported", &transcoder.Error{Op: "decode", Kind: transcoder.ErrUnsupportedFormat}, http.StatusUnsupportedMediaType, "unsupported_format"},
		{"corrupt", &transcoder.Error{Op: "decode", Kind: transcoder.ErrCorruptInput}, http.StatusUnprocessableEntity, "corrupt_input"},
		{"too many pixels", &transcoder.Error{Op: "decode", Kind: transcoder.ErrImageTooLarge}, http.StatusRequestEntityTooLarge, "image_too_large"},
		{"encoder", &transcoder.Error{Op: "encode", Kind: transcoder.ErrEncoderFailure}, http.StatusInternalServerError, "encoder_failure"},
		{"unreachable", &transcoder.Error{Op: "search", Kind: transcoder.ErrBudgetUnreachable}, http.StatusInternalServerError, "budget_unreachable"},
		{"invalid config", &transcoder.Error{Op: "validate", Kind: transcoder.ErrInvalidConfig}, http.StatusInternalServerError, "invalid_config"},
		{"canceled", context.Canceled, http.StatusServiceUnavailable, "canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(&fakeTranscoder{err: tt.err}, nil, nil)

			rec := httptest.NewRecorder()
			h.Transcode(rec, httptest.NewRequest(http.MethodPost, "/api/transcode", strings.NewReader("img")))

			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rec.Code)
			}
			if got := rec.Header().Get("X-Error-Kind"); got != tt.kind {
				t.Errorf("Expected X-Error-Kind=%q, got %q", tt.kind, got)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Expected JSON error body: %v", err)
			}
			if body["error"] == "" {
				t.Error("Expected non-empty error message")
			}
		})
	}
}

func TestTranscode_RealErrors(t *testing.T) {
	h := newTestHandlers(transcoder.New(), nil, nil)

	tests := []struct {
		name   string
		body   []byte
		status int
	}{
		{"empty body", nil, http.StatusUnsupportedMediaType},
		{"text", []byte("hello, world"), http.StatusUnsupportedMediaType},
		{"truncated png", gradientPNG(t, 32, 32)[:40], http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Transcode(rec, httptest.NewRequest(http.MethodPost, "/api/transcode", bytes.NewReader(tt.body)))
			if rec.Code != tt.status {
				t.Errorf("Expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTranscode_BodyTooLarge(t *testing.T) {
	fake := &fakeTranscoder{res: &transcoder.Result{}}
	h := newTestHandlers(fake, nil, func(c *startup.Config) { c.MaxUploadBytes = 16 })

	rec := httptest.NewRecorder()
	h.Transcode(rec, httptest.NewRequest(http.MethodPost, "/api/transcode", bytes.NewReader(make([]byte, 17))))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", rec.Code)
	}
	if fake.calls != 0 {
		t.Errorf("Expected transcoder not to be called, got %d calls", fake.calls)
	}
}

func TestTranscode_OverBudgetPolicy(t *testing.T) {
	overBudget := &transcoder.Result{
		Output:      []byte{0xff, 0xd8, 0xff, 0xd9},
		Quality:     30,
		Iterations:  5,
		Searched:    true,
		Termination: transcoder.TerminationQualityFloor,
		BudgetMet:   false,
	}

	t.Run("best effort kept by default", func(t *testing.T) {
		h := newTestHandlers(&fakeTranscoder{res: overBudget}, nil, nil)
		rec := httptest.NewRecorder()
		h.Transcode(rec, httptest.NewRequest(http.MethodPost, "/api/transcode", strings.NewReader("img")))

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if rec.Header().Get("X-Budget-Met") != "false" {
			t.Errorf("Expected X-Budget-Met=false, got %q", rec.Header().Get("X-Budget-Met"))
		}
		if rec.Header().Get("X-Termination") != "quality_floor_reached" {
			t.Errorf("Expected quality_floor_reached, got %q", rec.Header().Get("X-Termination"))
		}
	})

	t.Run("rejected when configured", func(t *testing.T) {
		h := newTestHandlers(&fakeTranscoder{res: overBudget}, nil, func(c *startup.Config) { c.RejectOverBudget = true })
		rec := httptest.NewRecorder()
		h.Transcode(rec, httptest.NewRequest(http.MethodPost, "/api/transcode", strings.NewReader("img")))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("Expected 422, got %d", rec.Code)
		}
		if rec.Header().Get("X-Error-Kind") != "over_budget" {
			t.Errorf("Expected X-Error-Kind=over_budget, got %q", rec.Header().Get("X-Error-Kind"))
		}
	})
}

func TestTranscodeMeta(t *testing.T) {
	h := newTestHandlers(transcoder.New(), nil, nil)
	raw := gradientPNG(t, 40, 30)

	rec := httptest.NewRecorder()
	h.TranscodeMeta(rec, httptest.NewRequest(http.MethodPost, "/api/transcode/meta", bytes.NewReader(raw)))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var res transcoder.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if res.InputSize != int64(len(raw)) {
		t.Errorf("Expected input_size=%d, got %d", len(raw), res.InputSize)
	}
	if res.SourceFormat != mediatypes.FormatPNG || res.Termination != transcoder.TerminationDirect {
		t.Errorf("Unexpected result: %+v", res)
	}
	if res.Width != 40 || res.Height != 30 {
		t.Errorf("Expected 40x30, got %dx%d", res.Width, res.Height)
	}
	if len(res.Output) != 0 {
		t.Error("Expected output bytes to be omitted from JSON")
	}
}

// formPart is one multipart entry. An empty filename makes it a plain
// form field.
type formPart struct {
	field, filename string
	data            []byte
}

func multipartBody(t *testing.T, parts []formPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		var (
			w   io.Writer
			err error
		)
		if p.filename == "" {
			w, err = mw.CreateFormField(p.field)
		} else {
			w, err = mw.CreateFormFile(p.field, p.filename)
		}
		if err != nil {
			t.Fatalf("creating part: %v", err)
		}
		if _, err := w.Write(p.data); err != nil {
			t.Fatalf("writing part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestTranscodeBatch(t *testing.T) {
	h := newTestHandlers(transcoder.New(), nil, nil)

	body, contentType := multipartBody(t, []formPart{
		{"a", "first.png", gradientPNG(t, 32, 32)},
		{"note", "", []byte("ignored form field")},
		{"b", "broken.txt", []byte("not an image")},
		{"c", "third.png", gradientPNG(t, 16, 8)},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/transcode/batch", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.TranscodeBatch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var items []BatchItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("Failed to decode batch response: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items (form field skipped), got %d", len(items))
	}

	expected := []struct {
		field, filename string
		status          int
	}{
		{"a", "first.png", http.StatusOK},
		{"b", "broken.txt", http.StatusUnsupportedMediaType},
		{"c", "third.png", http.StatusOK},
	}
	for i, want := range expected {
		got := items[i]
		if got.Field != want.field || got.Filename != want.filename || got.Status != want.status {
			t.Errorf("item %d: expected %s/%s/%d, got %s/%s/%d",
				i, want.field, want.filename, want.status, got.Field, got.Filename, got.Status)
		}
	}

	if items[0].Result == nil || len(items[0].Data) == 0 || items[0].ETag == "" {
		t.Fatalf("Expected result, data and etag for first item, got %+v", items[0])
	}
	if _, err := jpeg.Decode(bytes.NewReader(items[0].Data)); err != nil {
		t.Errorf("First item data is not a JPEG: %v", err)
	}
	if items[1].Error == "" || items[1].Data != nil {
		t.Errorf("Expected error and no data for broken item, got %+v", items[1])
	}
	if items[2].Result.Width != 16 || items[2].Result.Height != 8 {
		t.Errorf("Expected third item 16x8, got %dx%d", items[2].Result.Width, items[2].Result.Height)
	}
}

func TestTranscodeBatch_BadRequests(t *testing.T) {
	h := newTestHandlers(&fakeTranscoder{res: &transcoder.Result{}}, nil, nil)

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/transcode/batch", strings.NewReader("raw"))
		req.Header.Set("Content-Type", "image/png")
		rec := httptest.NewRecorder()
		h.TranscodeBatch(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("no file parts", func(t *testing.T) {
		body, contentType := multipartBody(t, []formPart{
			{"note", "", []byte("just a field")},
		})
		req := httptest.NewRequest(http.MethodPost, "/api/transcode/batch", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		h.TranscodeBatch(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("body too large", func(t *testing.T) {
		small := newTestHandlers(&fakeTranscoder{res: &transcoder.Result{}}, nil, func(c *startup.Config) { c.MaxUploadBytes = 64 })
		body, contentType := multipartBody(t, []formPart{
			{"a", "big.png", make([]byte, 1024)},
		})
		req := httptest.NewRequest(http.MethodPost, "/api/transcode/batch", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		small.TranscodeBatch(rec, req)

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("Expected 413, got %d", rec.Code)
		}
	})
}

func TestTranscodeBatch_CanceledRequest(t *testing.T) {
	fake := &fakeTranscoder{res: &transcoder.Result{}}
	h := newTestHandlers(fake, nil, nil)

	body, contentType := multipartBody(t, []formPart{
		{"a", "a.png", []byte("x")},
		{"b", "b.png", []byte("y")},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/api/transcode/batch", body).WithContext(ctx)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.TranscodeBatch(rec, req)

	var items []BatchItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("Failed to decode batch response: %v", err)
	}
	for i, item := range items {
		if item.Status != http.StatusServiceUnavailable {
			t.Errorf("item %d: expected 503, got %d", i, item.Status)
		}
	}
	if fake.calls != 0 {
		t.Errorf("Expected no transcodes after cancellation, got %d", fake.calls)
	}
}

func TestHealthChecks(t *testing.T) {
	tests := []struct {
		name       string
		mem        MemoryStatus
		draining   bool
		status     string
		healthCode int
		readyCode  int
	}{
		{"healthy", nil, false, statusHealthy, http.StatusOK, http.StatusOK},
		{"memory ok", fakeMemory{paused: false}, false, statusHealthy, http.StatusOK, http.StatusOK},
		{"memory paused", fakeMemory{paused: true}, false, statusDegraded, http.StatusOK, http.StatusServiceUnavailable},
		{"draining", nil, true, statusDraining, http.StatusServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(&fakeTranscoder{}, tt.mem, nil)
			if tt.draining {
				h.SetDraining()
			}

			rec := httptest.NewRecorder()
			h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.healthCode {
				t.Errorf("Expected health status %d, got %d", tt.healthCode, rec.Code)
			}

			var resp HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode health response: %v", err)
			}
			if resp.Status != tt.status {
				t.Errorf("Expected status %q, got %q", tt.status, resp.Status)
			}
			if resp.Workers != 2 {
				t.Errorf("Expected 2 workers, got %d", resp.Workers)
			}
			if tt.mem != nil && resp.MemoryLimit != 1000 {
				t.Errorf("Expected memory limit 1000, got %d", resp.MemoryLimit)
			}

			rec = httptest.NewRecorder()
			h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.readyCode {
				t.Errorf("Expected readiness status %d, got %d", tt.readyCode, rec.Code)
			}

			rec = httptest.NewRecorder()
			h.LivenessCheck(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
			if rec.Code != http.StatusOK {
				t.Errorf("Expected liveness 200, got %d", rec.Code)
			}
		})
	}
}

func TestLivenessCheck_Head(t *testing.T) {
	h := newTestHandlers(&fakeTranscoder{}, nil, nil)
	rec := httptest.NewRecorder()
	h.LivenessCheck(rec, httptest.NewRequest(http.MethodHead, "/livez", nil))

	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("Expected 200 with empty body, got %d and %d bytes", rec.Code, rec.Body.Len())
	}
}

func TestGetVersion(t *testing.T) {
	h := newTestHandlers(&fakeTranscoder{}, nil, nil)
	rec := httptest.NewRecorder()
	h.GetVersion(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var resp VersionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode version response: %v", err)
	}
	if resp.Version != startup.Version {
		t.Errorf("Expected version %q, got %q", startup.Version, resp.Version)
	}
	if resp.Transcode != transcoder.DefaultConfig() {
		t.Errorf("Expected default transcode config, got %+v", resp.Transcode)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"max bytes", &http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{"bad request", &badRequestError{errNoFiles}, http.StatusBadRequest},
		{"bad request wrapping max bytes", &badRequestError{&http.MaxBytesError{Limit: 1}}, http.StatusRequestEntityTooLarge},
		{"over budget", errOverBudget, http.StatusUnprocessableEntity},
		{"pool stopped", workers.ErrPoolStopped, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"unknown", bytes.ErrTooLarge, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.status {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.status)
			}
		})
	}
}
