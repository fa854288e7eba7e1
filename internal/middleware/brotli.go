package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// Brotli compresses responses of at least minLength bytes for clients that
// accept "br". Streaming responses (SSE, WebSocket upgrades) and paths under
// skipPrefixes pass through untouched.
func Brotli(minLength int, skipPrefixes ...string) gin.HandlerFunc {
	if minLength <= 0 {
		minLength = 1024
	}

	return func(c *gin.Context) {
		if !acceptsBrotli(c.Request) || isStreaming(c.Request) || hasPrefix(c.Request.URL.Path, skipPrefixes) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		bw := &brotliWriter{ResponseWriter: c.Writer, minLength: minLength}
		c.Writer = bw
		defer bw.finish()

		c.Next()
	}
}

// brotliWriter buffers the body until minLength is reached, then switches to
// compressed output. Bodies that stay short are written as-is.
type brotliWriter struct {
	gin.ResponseWriter
	minLength int
	buf       []byte
	enc       *brotli.Writer
}

func (w *brotliWriter) Write(data []byte) (int, error) {
	if w.enc != nil {
		return w.enc.Write(data)
	}

	w.buf = append(w.buf, data...)
	if len(w.buf) < w.minLength {
		return len(data), nil
	}

	h := w.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	w.enc = brotli.NewWriterLevel(w.ResponseWriter, brotli.DefaultCompression)

	if _, err := w.enc.Write(w.buf); err != nil {
		return 0, err
	}
	w.buf = nil
	return len(data), nil
}

func (w *brotliWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush pushes buffered plain bytes out so a handler flushing mid-response
// is not held back.
func (w *brotliWriter) Flush() {
	if w.enc != nil {
		_ = w.enc.Flush()
	} else if len(w.buf) > 0 {
		_, _ = w.ResponseWriter.Write(w.buf)
		w.buf = nil
	}
	w.ResponseWriter.Flush()
}

func (w *brotliWriter) finish() {
	if w.enc != nil {
		_ = w.enc.Close()
		return
	}
	if len(w.buf) > 0 {
		_, _ = w.ResponseWriter.Write(w.buf)
	}
}

func isStreaming(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream") ||
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
