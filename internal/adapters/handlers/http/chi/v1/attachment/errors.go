package attachment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"tus-upload/internal/core/domain"

	"github.com/go-chi/chi/v5"
)

// V1ErrorResponse is the body of every error response
type V1ErrorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps a service error to its HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidUploadID),
		errors.Is(err, domain.ErrInvalidMetadata),
		errors.Is(err, domain.ErrInvalidChecksum),
		errors.Is(err, domain.ErrUnsupportedChecksum),
		errors.Is(err, domain.ErrChecksumMismatch):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrOffsetConflict),
		errors.Is(err, domain.ErrUploadLocked),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrUnsupportedVersion):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *HandlerV1) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	message := err.Error()

	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Error("upload request failed",
			"upload_id", chi.URLParam(r, "id"),
			"method", r.Method,
			"error", err)
		message = http.StatusText(status)
	case status == http.StatusConflict:
		h.logger.Warn("upload request rejected", "upload_id", chi.URLParam(r, "id"), "error", err)
	}

	writeJSON(w, status, V1ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
