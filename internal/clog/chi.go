package clog

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// HTTPStatusToLevel picks a log level for a response status.
func HTTPStatusToLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// SlogChiMiddleware logs one record per request with method, path,
// status, bytes written and duration, plus anything handlers attached to
// the request context.
func SlogChiMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ctx := ContextWithSlog(r.Context())
			AddAttributes(ctx, map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			AddAttributes(ctx, map[string]any{
				"status":        status,
				"bytes_written": ww.BytesWritten(),
				"duration":      time.Since(start),
			})
			logger.Log(ctx, HTTPStatusToLevel(status), http.StatusText(status))
		})
	}
}
