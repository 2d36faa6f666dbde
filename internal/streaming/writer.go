package streaming

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"imgbudget/internal/logging"
)

// Sentinel errors for output delivery.
var (
	// ErrWriteTimeout indicates that a write operation exceeded the configured timeout.
	// This typically occurs when a client is receiving data too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the request context ended before the body was sent.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates that the writer was closed, or cancelled
	// itself after a write or idle timeout.
	ErrStreamCanceled = errors.New("stream canceled")
)

// TimeoutWriterConfig configures the timeout writer behavior
type TimeoutWriterConfig struct {
	// WriteTimeout is the maximum time to wait for a single chunk write
	WriteTimeout time.Duration
	// IdleTimeout is the maximum time between successful writes (0 = no check)
	IdleTimeout time.Duration
	// ChunkSize is the size of chunks to write (0 = write as received)
	ChunkSize int
}

// DefaultTimeoutWriterConfig returns the settings used for JPEG responses.
func DefaultTimeoutWriterConfig() TimeoutWriterConfig {
	return TimeoutWriterConfig{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter so a stalled client cannot
// hold a connection open indefinitely.
type TimeoutWriter struct {
	w            http.ResponseWriter
	parent       context.Context
	ctx          context.Context
	cancel       context.CancelFunc
	config       TimeoutWriterConfig
	startTime    time.Time
	lastWrite    time.Time
	bytesWritten int64
	mu           sync.Mutex
	closed       bool
	flusher      http.Flusher
}

// NewTimeoutWriter creates a new timeout-protected writer
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config TimeoutWriterConfig) *TimeoutWriter {
	writerCtx, cancel := context.WithCancel(ctx)

	tw := &TimeoutWriter{
		w:         w,
		parent:    ctx,
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		startTime: time.Now(),
		lastWrite: time.Now(),
	}

	if flusher, ok := w.(http.Flusher); ok {
		tw.flusher = flusher
	}

	go tw.idleChecker()

	return tw
}

// Write implements io.Writer with timeout protection
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}

	if err := tw.ctxErr(); err != nil {
		return 0, err
	}

	if tw.config.ChunkSize > 0 && len(p) > tw.config.ChunkSize {
		return tw.writeChunked(p)
	}
	return tw.writeWithTimeout(p)
}

// writeChunked writes data in ChunkSize pieces, flushing after each.
func (tw *TimeoutWriter) writeChunked(p []byte) (int, error) {
	totalWritten := 0

	for len(p) > 0 {
		if err := tw.ctxErr(); err != nil {
			return totalWritten, err
		}

		chunkSize := tw.config.ChunkSize
		if len(p) < chunkSize {
			chunkSize = len(p)
		}

		n, err := tw.writeWithTimeout(p[:chunkSize])
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}

		p = p[chunkSize:]

		if tw.flusher != nil {
			tw.flusher.Flush()
		}
	}

	return totalWritten, nil
}

// writeWithTimeout performs a single write with timeout
func (tw *TimeoutWriter) writeWithTimeout(p []byte) (int, error) {
	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := tw.w.Write(p)
		resultCh <- writeResult{n, err}
	}()

	timeout := tw.config.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultTimeoutWriterConfig().WriteTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-resultCh:
		if result.err == nil {
			tw.mu.Lock()
			tw.lastWrite = time.Now()
			tw.bytesWritten += int64(result.n)
			tw.mu.Unlock()
		}
		return result.n, result.err

	case <-timer.C:
		tw.cancel()
		return 0, ErrWriteTimeout

	case <-tw.ctx.Done():
		return 0, tw.contextError()
	}
}

// idleChecker cancels the writer once no write has succeeded for IdleTimeout.
func (tw *TimeoutWriter) idleChecker() {
	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			closed := tw.closed
			tw.mu.Unlock()

			if closed {
				return
			}

			if idle > tw.config.IdleTimeout {
				logging.Warn("Response idle timeout exceeded: %v", idle)
				tw.cancel()
				return
			}

		case <-tw.ctx.Done():
			return
		}
	}
}

func (tw *TimeoutWriter) ctxErr() error {
	select {
	case <-tw.ctx.Done():
		return tw.contextError()
	default:
		return nil
	}
}

// contextError distinguishes the request ending from the writer cancelling
// itself after a timeout or Close.
func (tw *TimeoutWriter) contextError() error {
	if tw.parent.Err() != nil {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Close marks the writer as closed. It is safe to call more than once.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return nil
	}

	tw.closed = true
	tw.cancel()

	return nil
}

// Stats returns bytes written and elapsed time
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.startTime)
}

// WriteBody sends data as the response body with timeout protection.
// Headers, including Content-Length, must already be set.
func WriteBody(ctx context.Context, w http.ResponseWriter, data []byte, config TimeoutWriterConfig) error {
	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		_ = tw.Close()
	}()

	_, err := io.Copy(tw, bytes.NewReader(data))

	bytesWritten, duration := tw.Stats()
	logging.Debug("Response body sent: %d of %d bytes in %v", bytesWritten, len(data), duration)

	return err
}
