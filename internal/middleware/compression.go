package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the smallest body, in bytes, worth compressing
	MinSize int
	// Level is the gzip level (gzip.BestSpeed to gzip.BestCompression)
	Level int
	// Types are the media types to compress. JPEG output is already
	// entropy-coded and must not be listed.
	Types []string
}

// DefaultCompressionConfig compresses JSON, which covers the metadata and
// batch responses. Base64 image data in batch responses shrinks by roughly
// the 4/3 encoding overhead.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.BestSpeed,
		Types:   []string{"application/json", "text/plain"},
	}
}

// gzipResponseWriter buffers up to MinSize bytes, then decides once whether
// the response is compressed.
type gzipResponseWriter struct {
	http.ResponseWriter
	config CompressionConfig
	pool   *sync.Pool

	buffer     []byte
	statusCode int
	decided    bool
	gz         *gzip.Writer
}

func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if !g.decided {
		g.statusCode = statusCode
	}
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	if g.decided {
		if g.gz != nil {
			return g.gz.Write(data)
		}
		return g.ResponseWriter.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) >= g.config.MinSize {
		if err := g.decide(); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

func (g *gzipResponseWriter) compressible() bool {
	h := g.Header()
	if h.Get("Content-Encoding") != "" {
		return false
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(h.Get("Content-Type"), ";")[0]))
	for _, t := range g.config.Types {
		if mediaType == t {
			return true
		}
	}
	return false
}

// decide writes the header and flushes the buffered prefix.
func (g *gzipResponseWriter) decide() error {
	g.decided = true
	buf := g.buffer
	g.buffer = nil

	if len(buf) >= g.config.MinSize && g.compressible() {
		h := g.Header()
		h.Del("Content-Length")
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")

		g.gz = g.pool.Get().(*gzip.Writer)
		g.gz.Reset(g.ResponseWriter)
		g.ResponseWriter.WriteHeader(g.statusCode)
		_, err := g.gz.Write(buf)
		return err
	}

	g.ResponseWriter.WriteHeader(g.statusCode)
	_, err := g.ResponseWriter.Write(buf)
	return err
}

// Close flushes anything still buffered and returns the gzip writer to the pool.
func (g *gzipResponseWriter) Close() error {
	if !g.decided {
		if err := g.decide(); err != nil {
			return err
		}
	}
	if g.gz == nil {
		return nil
	}
	err := g.gz.Close()
	g.pool.Put(g.gz)
	g.gz = nil
	return err
}

// Flush implements http.Flusher
func (g *gzipResponseWriter) Flush() {
	if !g.decided {
		_ = g.decide()
	}
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Compression returns a middleware that gzips eligible responses for
// clients that accept it.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	pool := &sync.Pool{
		New: func() interface{} {
			w, err := gzip.NewWriterLevel(nil, config.Level)
			if err != nil {
				w = gzip.NewWriter(nil)
			}
			return w
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			gzw := &gzipResponseWriter{
				ResponseWriter: w,
				config:         config,
				pool:           pool,
				statusCode:     http.StatusOK,
				buffer:         make([]byte, 0, config.MinSize),
			}
			defer gzw.Close()

			next.ServeHTTP(gzw, r)
		})
	}
}
