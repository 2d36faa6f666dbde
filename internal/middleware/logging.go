package middleware

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// responseWriter captures the status code and body size for the access log.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	SkipPaths       []string
	LogHealthChecks bool
}

// DefaultLoggingConfig logs everything, health checks included.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{},
		LogHealthChecks: true,
	}
}

// ServiceName identifies the server in the access log header.
const ServiceName = "imgbudget/1.0"

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// w3cFields is the #Fields directive for the access log. cs-bytes is the
// uploaded image size and x-termination is why the transcoder stopped.
const w3cFields = "date time c-ip cs-method cs-uri-stem sc-status cs-bytes sc-bytes time-taken x-termination cs(User-Agent)"

// sanitizeLogField removes control characters that could be used for log
// injection: newlines become spaces; NUL, ESC and other C0 controls except
// tab are dropped.
func sanitizeLogField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Logger returns HTTP logging middleware using W3C Extended Log Format.
// The #Fields directive is written once when the middleware is built.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	log.Printf("#Software: %s", ServiceName)
	log.Printf("#Fields: %s", w3cFields)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkip(r.URL.Path, config) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			log.Println(formatLogLine(r, wrapped, time.Since(start), time.Now().UTC()))
		})
	}
}

// formatLogLine renders one access log entry. Every user-controlled field
// goes through sanitizeLogField.
func formatLogLine(r *http.Request, rw *responseWriter, duration time.Duration, now time.Time) string {
	requestBytes := "-"
	if r.ContentLength >= 0 {
		requestBytes = strconv.FormatInt(r.ContentLength, 10)
	}

	return fmt.Sprintf("%s %s %s %s %s %d %s %d %d %s %s",
		now.Format("2006-01-02"),
		now.Format("15:04:05"),
		orDash(sanitizeLogField(getClientIP(r))),
		orDash(sanitizeLogField(r.Method)),
		orDash(sanitizeLogField(r.URL.Path)),
		rw.statusCode,
		requestBytes,
		rw.bytesWritten,
		duration.Milliseconds(),
		orDash(rw.Header().Get("X-Termination")),
		escapeW3CField(orDash(sanitizeLogField(r.Header.Get("User-Agent")))),
	)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shouldSkip(path string, config LoggingConfig) bool {
	for _, skipPath := range config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return !config.LogHealthChecks && healthCheckPaths[path]
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// escapeW3CField quotes values containing whitespace or quotes, doubling
// embedded quotes.
func escapeW3CField(s string) string {
	if strings.ContainsAny(s, " \t\"") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}
