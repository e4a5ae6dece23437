package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

const (
	brotliQuality = 4

	// compressMinSize is the smallest body that gets encoded. Shorter
	// bodies are sent as is.
	compressMinSize = 1 << 10
)

var gzipPool = sync.Pool{
	New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

var brotliPool = sync.Pool{
	New: func() any {
		return brotli.NewWriterLevel(io.Discard, brotliQuality)
	},
}

// compress encodes large responses with brotli or gzip, preferring brotli.
// It is attached per route: line ranges and /metrics can be large, single
// lines and probes are not.
func compress() gin.HandlerFunc {
	return func(c *gin.Context) {
		enc := negotiateEncoding(c.GetHeader("Accept-Encoding"))
		if enc == "" {
			c.Next()
			return
		}

		// Handlers behind this middleware must not encode on their own.
		c.Request = c.Request.Clone(c.Request.Context())
		c.Request.Header.Del("Accept-Encoding")

		w := &encodingWriter{ResponseWriter: c.Writer, encoding: enc, head: c.Request.Method == http.MethodHead}
		c.Writer = w
		defer w.finish()
		c.Next()
	}
}

// negotiateEncoding picks "br" or "gzip" from an Accept-Encoding header, or
// "" when neither is acceptable. A q=0 entry rules an encoding out.
func negotiateEncoding(header string) string {
	var br, gz bool
	for part := range strings.SplitSeq(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if q, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if v, err := strconv.ParseFloat(q, 64); err == nil && v == 0 {
				continue
			}
		}
		switch strings.TrimSpace(name) {
		case "br":
			br = true
		case "gzip":
			gz = true
		}
	}
	switch {
	case br:
		return "br"
	case gz:
		return "gzip"
	default:
		return ""
	}
}

// encodingWriter holds back the first compressMinSize bytes of a body to
// decide whether encoding is worth it.
type encodingWriter struct {
	gin.ResponseWriter
	encoding string
	head     bool

	buf     []byte
	decided bool
	enc     io.WriteCloser
}

func (w *encodingWriter) Write(b []byte) (int, error) {
	if w.decided {
		return w.write(b)
	}
	w.buf = append(w.buf, b...)
	if len(w.buf) >= compressMinSize {
		if err := w.decide(true); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

func (w *encodingWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *encodingWriter) write(b []byte) (int, error) {
	if w.enc != nil {
		return w.enc.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// decide settles the encoding and releases the held bytes.
func (w *encodingWriter) decide(large bool) error {
	w.decided = true
	status := w.Status()
	if large && !w.head &&
		status != http.StatusNoContent && status != http.StatusNotModified &&
		w.Header().Get("Content-Encoding") == "" {
		h := w.Header()
		h.Set("Content-Encoding", w.encoding)
		h.Del("Content-Length")
		h.Add("Vary", "Accept-Encoding")

		switch w.encoding {
		case "br":
			bw := brotliPool.Get().(*brotli.Writer)
			bw.Reset(w.ResponseWriter)
			w.enc = bw
		case "gzip":
			gz := gzipPool.Get().(*gzip.Writer)
			gz.Reset(w.ResponseWriter)
			w.enc = gz
		}
	}

	held := w.buf
	w.buf = nil
	if len(held) == 0 {
		return nil
	}
	_, err := w.write(held)
	return err
}

// Flush commits to encoding so streamed output is not held back.
func (w *encodingWriter) Flush() {
	if !w.decided {
		_ = w.decide(true)
	}
	if f, ok := w.enc.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *encodingWriter) finish() {
	if !w.decided {
		_ = w.decide(false)
	}
	if w.enc == nil {
		return
	}
	_ = w.enc.Close()
	switch w.encoding {
	case "br":
		brotliPool.Put(w.enc)
	case "gzip":
		gzipPool.Put(w.enc)
	}
	w.enc = nil
}
