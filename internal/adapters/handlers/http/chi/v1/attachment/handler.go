package attachment

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"tus-upload/internal/core/port"

	"github.com/go-chi/chi/v5"
)

// Config tunes the tus surface
type Config struct {
	BasePath           string
	MaxSize            int64
	MaxChunkSize       int64
	CacheMaxObjectSize int64
}

// HandlerV1 is the handler for v1 attachment routes
type HandlerV1 struct {
	uploadService port.UploadService
	cache         port.ResponseCache
	config        Config
	logger        *slog.Logger
}

// NewAttachmentHandlerV1 creates HandlerV1. cache may be nil to disable response caching.
func NewAttachmentHandlerV1(service port.UploadService, cache port.ResponseCache, cfg Config, logger *slog.Logger) *HandlerV1 {
	return &HandlerV1{
		uploadService: service,
		cache:         cache,
		config:        cfg,
		logger:        logger,
	}
}

// Routes exposes handler routes
func (h *HandlerV1) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(TusResumable)

	router.Options("/", h.OptionsV1)
	router.Post("/", h.CreateUploadV1)
	router.Options("/{id}", h.OptionsV1)
	router.Head("/{id}", h.HeadUploadV1)
	router.Patch("/{id}", h.PatchUploadV1)
	router.Get("/{id}", h.GetUploadV1)
	router.Delete("/{id}", h.DeleteUploadV1)

	return router
}

func (h *HandlerV1) location(id string) string {
	return strings.TrimRight(h.config.BasePath, "/") + "/" + url.PathEscape(id)
}

func (h *HandlerV1) evict(ctx context.Context, id string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(ctx, id); err != nil {
		h.logger.Warn("failed to evict cached response", "upload_id", id, "error", err)
	}
}
