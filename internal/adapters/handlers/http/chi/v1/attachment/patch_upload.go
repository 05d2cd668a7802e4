package attachment

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// PatchUploadV1 appends one chunk at the declared offset
func (h *HandlerV1) PatchUploadV1(w http.ResponseWriter, r *http.Request) {
	req, err := parsePatchRequest(r, chi.URLParam(r, "id"), h.config.MaxChunkSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.uploadService.AppendChunk(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set(HeaderUploadOffset, strconv.FormatInt(session.Offset, 10))
	setExpires(w, session)
	w.WriteHeader(http.StatusNoContent)
}
