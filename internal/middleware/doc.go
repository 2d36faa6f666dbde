// Package middleware provides HTTP middleware for the transcode server.
//
// It includes:
//   - Request logging in W3C Extended Log Format, with the upload size and
//     the transcoder's termination reason per request
//   - Prometheus request metrics labelled by route template
//   - gzip compression of JSON responses
package middleware
