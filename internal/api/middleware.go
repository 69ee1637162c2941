package api

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("tenant", tenantID(r)))
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := r.URL.Path
		if pattern := r.Pattern; pattern != "" {
			route = pattern
		}
		ctx := r.Context()
		_ = s.collector.AddCounter(ctx, "requests_total", 1, route, http.StatusText(rec.status)) //nolint:errcheck
		_ = s.collector.ObserveHistogram(ctx, "request_duration_seconds", time.Since(start).Seconds(), route) //nolint:errcheck
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

var gzipPool = sync.Pool{
	New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

var zstdPool = sync.Pool{
	New: func() any {
		w, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return w
	},
}

type compressedWriter struct {
	http.ResponseWriter
	encoder io.Writer
}

func (w *compressedWriter) Write(b []byte) (int, error) {
	return w.encoder.Write(b)
}

// compressMiddleware negotiates zstd or gzip response encoding from
// Accept-Encoding. zstd wins when the client accepts both.
func (s *Server) compressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accepted := r.Header.Get("Accept-Encoding")
		switch {
		case strings.Contains(accepted, "zstd"):
			enc := zstdPool.Get().(*zstd.Encoder)
			enc.Reset(w)
			defer func() {
				enc.Close() //nolint:errcheck
				zstdPool.Put(enc)
			}()
			w.Header().Set("Content-Encoding", "zstd")
			w.Header().Del("Content-Length")
			next.ServeHTTP(&compressedWriter{ResponseWriter: w, encoder: enc}, r)
		case strings.Contains(accepted, "gzip"):
			gz := gzipPool.Get().(*gzip.Writer)
			gz.Reset(w)
			defer func() {
				gz.Close() //nolint:errcheck
				gzipPool.Put(gz)
			}()
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Del("Content-Length")
			next.ServeHTTP(&compressedWriter{ResponseWriter: w, encoder: gz}, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
