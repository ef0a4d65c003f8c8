package server

import (
	"log/slog"
	"net/http"
	"time"
)

// SlowRequestThreshold is the latency above which a request is logged at
// warning level.
const SlowRequestThreshold = 1000 * time.Millisecond

// PerformanceMonitor measures request latency. Every request produces a debug
// entry with method, path, duration, and status; requests slower than the
// threshold additionally produce a warning including the caller IP. It fires
// exactly once per request, after the handler has finished writing, and never
// touches the response itself.
func PerformanceMonitor(logger *slog.Logger, threshold time.Duration) func(http.Handler) http.Handler {
	if threshold <= 0 {
		threshold = SlowRequestThreshold
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			logger.Debug("request timing",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int64("duration_ms", duration.Milliseconds()),
				slog.Int("status", wrapped.status),
			)

			if duration > threshold {
				logger.Warn("slow request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int64("duration_ms", duration.Milliseconds()),
					slog.Int("status", wrapped.status),
					slog.String("remote_addr", r.RemoteAddr),
				)
			}
		})
	}
}
