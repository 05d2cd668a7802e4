package attachment

import (
	"net/http"
	"strconv"
)

// V1CreateUploadResponse is the response to an upload creation
type V1CreateUploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	UploadID  string `json:"uploadId"`
}

// CreateUploadV1 is the function that handles upload creation, with an optional inline chunk
func (h *HandlerV1) CreateUploadV1(w http.ResponseWriter, r *http.Request) {

	req, err := parseCreateRequest(r, h.config.MaxChunkSize)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.uploadService.CreateUpload(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.evict(r.Context(), session.ID)

	location := h.location(session.ID)
	w.Header().Set("Location", location)
	if len(req.Body) > 0 {
		w.Header().Set(HeaderUploadOffset, strconv.FormatInt(session.Offset, 10))
	}
	setExpires(w, session)

	h.logger.Info("upload created", "upload_id", session.ID, "offset", session.Offset, "defer_length", session.DeferLength)
	writeJSON(w, http.StatusCreated, V1CreateUploadResponse{
		UploadURL: location,
		UploadID:  session.ID,
	})
}
