package attachment

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"tus-upload/internal/core/digest"
	"tus-upload/internal/core/domain"

	"github.com/go-chi/chi/v5"
)

// GetUploadV1 serves the bytes of an upload, whole or by range. Full reads of finalized uploads are cached.
func (h *HandlerV1) GetUploadV1(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := parseDownloadRequest(r, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Range == nil && h.cache != nil {
		// a cached body is only valid for the live finalized session it was read from
		session, err := h.uploadService.GetUpload(r.Context(), id)
		if err != nil {
			h.evict(r.Context(), id)
			h.writeError(w, r, err)
			return
		}
		if h.serveCached(w, r, req, session) {
			return
		}
	}

	download, err := h.uploadService.GetContent(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	session := download.Session
	header := w.Header()

	if download.NotModified {
		header.Set("ETag", quoteETag(session.ETag))
		w.WriteHeader(http.StatusNotModified)
		return
	}

	object := download.Object
	defer object.Body.Close()

	header.Set("Accept-Ranges", "bytes")
	header.Set("Content-Type", session.Metadata.ContentType())
	if download.Complete {
		if object.ETag != "" {
			header.Set("ETag", quoteETag(object.ETag))
		}
		if checksum, err := digest.Base64(session.Digest); err == nil {
			header.Set(HeaderChecksumSHA256, checksum)
		}
	} else {
		header.Set("Cache-Control", "no-store")
		header.Set(HeaderUploadOffset, strconv.FormatInt(session.Offset, 10))
	}

	if download.Partial {
		header.Set("Content-Range", download.Range.ContentRange(object.Size))
		header.Set("Content-Length", strconv.FormatInt(object.ContentLength, 10))
		w.WriteHeader(http.StatusPartialContent)
		h.copyBody(w, object, id)
		return
	}

	if download.Complete && h.cache != nil && object.Size <= h.config.CacheMaxObjectSize {
		body, err := io.ReadAll(io.LimitReader(object.Body, object.Size+1))
		if err != nil {
			h.writeError(w, r, fmt.Errorf("could not read upload %s: %w", id, err))
			return
		}
		cached := domain.CachedResponse{
			ETag:        object.ETag,
			ContentType: header.Get("Content-Type"),
			Checksum:    header.Get(HeaderChecksumSHA256),
			Body:        body,
		}
		if err := h.cache.Put(r.Context(), id, cached); err != nil {
			h.logger.Warn("failed to cache response", "upload_id", id, "error", err)
		}
		header.Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(body); err != nil {
			h.logger.Warn("failed to write response", "upload_id", id, "error", err)
		}
		return
	}

	header.Set("Content-Length", strconv.FormatInt(object.ContentLength, 10))
	w.WriteHeader(http.StatusOK)
	h.copyBody(w, object, id)
}

// serveCached answers from the response cache. It reports false on a miss or when the
// entry does not belong to session.
func (h *HandlerV1) serveCached(w http.ResponseWriter, r *http.Request, req domain.DownloadRequest, session *domain.UploadSession) bool {
	if session.State != domain.UploadSessionStateFinalized {
		return false
	}
	cached, ok, err := h.cache.Get(r.Context(), req.ID)
	if err != nil {
		h.logger.Warn("response cache unavailable", "upload_id", req.ID, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if cached.ETag != session.ETag {
		h.evict(r.Context(), req.ID)
		return false
	}

	header := w.Header()
	header.Set("ETag", quoteETag(cached.ETag))
	if domain.MatchETag(req.IfNoneMatch, cached.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	header.Set("Accept-Ranges", "bytes")
	header.Set("Content-Type", cached.ContentType)
	if cached.Checksum != "" {
		header.Set(HeaderChecksumSHA256, cached.Checksum)
	}
	header.Set("Content-Length", strconv.Itoa(len(cached.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(cached.Body); err != nil {
		h.logger.Warn("failed to write response", "upload_id", req.ID, "error", err)
	}
	return true
}

func (h *HandlerV1) copyBody(w http.ResponseWriter, object *domain.StoredObject, id string) {
	if _, err := io.Copy(w, object.Body); err != nil {
		h.logger.Warn("download interrupted", "upload_id", id, "error", err)
	}
}
