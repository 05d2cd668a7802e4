package chi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
	"tus-upload/internal/adapters/handlers/http/chi/v1/attachment"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// tusHeaders are the protocol headers browsers must be allowed to send and read
var tusHeaders = []string{
	"Location",
	"Tus-Resumable",
	"Tus-Version",
	"Tus-Max-Size",
	"Tus-Extension",
	"Tus-Checksum-Algorithm",
	"Upload-Length",
	"Upload-Defer-Length",
	"Upload-Metadata",
	"Upload-Offset",
	"Upload-Checksum",
	"Upload-Expires",
	"X-Checksum-Sha256",
	"ETag",
	"Content-Range",
	"Accept-Ranges",
}

// ReadinessCheck reports whether a dependency can serve requests
type ReadinessCheck func(ctx context.Context) error

// Options configures the router
type Options struct {
	Env            string
	BasePath       string
	HandlerTimeout time.Duration
	MaxRequestSize int64
	Checks         map[string]ReadinessCheck
}

// NewRouter builds http.Handler with chi
func NewRouter(logger *slog.Logger, attachmentHandler *attachment.HandlerV1, opts Options) http.Handler {
	r := chi.NewRouter()

	//handle requestID to facilitate debug (X-Request-ID)
	//It fetches from request if exists, or creates it
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(MethodOverride)
	if opts.HandlerTimeout > 0 {
		r.Use(middleware.Timeout(opts.HandlerTimeout))
	}
	if opts.MaxRequestSize > 0 {
		r.Use(middleware.RequestSize(opts.MaxRequestSize))
	}

	if opts.Env != "prod" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
			AllowedMethods:   []string{"GET", "HEAD", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   append([]string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-HTTP-Method-Override", "Range", "If-None-Match"}, tusHeaders...),
			ExposedHeaders:   tusHeaders,
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	basePath := opts.BasePath
	if basePath == "" {
		basePath = "/files/attachments"
	}
	r.Mount(basePath, attachmentHandler.Routes())

	r.Get("/health", healthHandler(opts.Checks))

	return r
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
		}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}
