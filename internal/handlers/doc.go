// Package handlers provides the HTTP API of the transcode server.
//
// Routes:
//   - POST /api/transcode: raw image body in, JPEG out, result metadata
//     in X- headers and a BLAKE2b ETag
//   - POST /api/transcode/meta: same transcode, JSON result without bytes
//   - POST /api/transcode/batch: multipart upload, every file part
//     transcoded concurrently, JSON array out in part order
//   - GET /health, /healthz, /livez, /readyz: probes
//   - GET /version: build info and active transcode settings
//
// Errors are written as {"error": msg} with a status derived from the
// error kind: 415 unsupported format, 422 corrupt input or a rejected
// over-budget result, 413 oversized body or pixel count, 503 when the
// request was cancelled or the server is shutting down, 500 otherwise.
// The X-Error-Kind header carries the machine-readable kind.
//
// JPEG bodies are written through [streaming.WriteBody], which flushes in
// chunks and gives up on a client that stops reading.
package handlers
