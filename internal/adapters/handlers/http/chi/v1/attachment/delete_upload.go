package attachment

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DeleteUploadV1 terminates an upload and removes its bytes
func (h *HandlerV1) DeleteUploadV1(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.uploadService.DeleteUpload(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.evict(r.Context(), id)

	w.WriteHeader(http.StatusNoContent)
}
