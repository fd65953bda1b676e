package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliOptions tunes response compression.
type BrotliOptions struct {
	Quality int
	// MinLength is the smallest body worth compressing. Shorter bodies go out as is.
	MinLength int
	Skip      func(c *gin.Context) bool
}

var DefaultBrotliOptions = BrotliOptions{
	Quality:   brotli.DefaultCompression,
	MinLength: 1024,
}

// brotliWriter buffers until MinLength bytes are written, then switches to
// compressing. Bodies that never reach the threshold are flushed uncompressed.
type brotliWriter struct {
	gin.ResponseWriter
	enc        *brotli.Writer
	buf        []byte
	minLength  int
	compressed bool
}

func (w *brotliWriter) Write(data []byte) (int, error) {
	if w.compressed {
		return w.enc.Write(data)
	}

	w.buf = append(w.buf, data...)
	if len(w.buf) < w.minLength {
		return len(data), nil
	}

	w.compressed = true
	h := w.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	if _, err := w.enc.Write(w.buf); err != nil {
		return 0, err
	}
	w.buf = nil
	return len(data), nil
}

func (w *brotliWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush sends whatever is buffered. Streaming handlers call it.
func (w *brotliWriter) Flush() {
	if w.compressed {
		_ = w.enc.Flush()
	} else if len(w.buf) > 0 {
		_, _ = w.ResponseWriter.Write(w.buf)
		w.buf = nil
	}
	w.ResponseWriter.Flush()
}

func (w *brotliWriter) finish() error {
	if w.compressed {
		return w.enc.Close()
	}
	if len(w.buf) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.buf)
	w.buf = nil
	return err
}

// Brotli compresses responses with the default options.
func Brotli() gin.HandlerFunc {
	return BrotliWithOptions(DefaultBrotliOptions)
}

// BrotliWithOptions compresses responses for clients that accept "br".
func BrotliWithOptions(opts BrotliOptions) gin.HandlerFunc {
	if opts.Quality < brotli.BestSpeed || opts.Quality > brotli.BestCompression {
		opts.Quality = brotli.DefaultCompression
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultBrotliOptions.MinLength
	}

	return func(c *gin.Context) {
		if isUpgrade(c.Request) || !acceptsBrotli(c.Request) || (opts.Skip != nil && opts.Skip(c)) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		w := &brotliWriter{
			ResponseWriter: c.Writer,
			enc:            brotli.NewWriterLevel(c.Writer, opts.Quality),
			minLength:      opts.MinLength,
		}
		c.Writer = w
		defer func() {
			if err := w.finish(); err != nil {
				_ = c.Error(err)
			}
		}()
		c.Next()
	}
}

// WebSocket handshakes must reach the handler unwrapped.
func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
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
