package attachment

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HeadUploadV1 reports the progress of an upload
func (h *HandlerV1) HeadUploadV1(w http.ResponseWriter, r *http.Request) {
	session, err := h.uploadService.GetUpload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	setUploadHeaders(w, session)
	w.WriteHeader(http.StatusNoContent)
}
