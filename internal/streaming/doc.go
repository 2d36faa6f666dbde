/*
Package streaming sends transcoded JPEG bodies with timeout protection.

The server runs without an http.Server WriteTimeout so multi-megabyte
uploads on slow links are not cut off. Response bodies are bounded here
instead: TimeoutWriter wraps http.ResponseWriter so a client that stops
reading is detected and its connection released.

# Features

  - Per-write timeouts bound each chunk write
  - Idle detection cancels the writer when no write succeeds for IdleTimeout
  - Large bodies are split into ChunkSize pieces and flushed after each
  - A cancelled request context ends the write with ErrClientGone

# Usage

	hdr.Set("Content-Length", strconv.Itoa(len(res.Output)))
	w.WriteHeader(http.StatusOK)
	if err := streaming.WriteBody(r.Context(), w, res.Output, streaming.DefaultTimeoutWriterConfig()); err != nil {
		logging.Debug("client went away: %v", err)
	}

# Errors

  - ErrWriteTimeout: a single write took longer than WriteTimeout
  - ErrClientGone: the request context was cancelled
  - ErrStreamCanceled: the writer was closed, or cancelled by the idle check

A write that times out leaves its goroutine blocked on the underlying
connection until the server closes it.
*/
package streaming
