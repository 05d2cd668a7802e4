package chi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// LoggerMiddleware logs one line per request. 5xx are logged at error, other failures at warn.
func LoggerMiddleware(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				level := slog.LevelInfo
				switch status := ww.Status(); {
				case status >= http.StatusInternalServerError:
					level = slog.LevelError
				case status >= http.StatusBadRequest:
					level = slog.LevelWarn
				}
				l.LogAttrs(r.Context(), level, "http_request",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int64("bytes_in", r.ContentLength),
					slog.Int("bytes_out", ww.BytesWritten()),
					slog.String("upload_offset", w.Header().Get("Upload-Offset")),
					slog.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// MethodOverride applies X-HTTP-Method-Override on POST requests, for clients that cannot send PATCH or DELETE
func MethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			switch override := strings.ToUpper(r.Header.Get("X-HTTP-Method-Override")); override {
			case http.MethodPatch, http.MethodDelete, http.MethodHead, http.MethodGet:
				r.Method = override
			}
		}
		next.ServeHTTP(w, r)
	})
}
