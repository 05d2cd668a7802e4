package attachment

import (
	"net/http"
	"strconv"
	"strings"
	"tus-upload/internal/core/domain"
)

func setExpires(w http.ResponseWriter, session *domain.UploadSession) {
	if session.State == domain.UploadSessionStateOpen && !session.ExpiresAt.IsZero() {
		w.Header().Set(HeaderUploadExpires, session.ExpiresAt.UTC().Format(http.TimeFormat))
	}
}

func setUploadHeaders(w http.ResponseWriter, session *domain.UploadSession) {
	header := w.Header()
	header.Set(HeaderUploadOffset, strconv.FormatInt(session.Offset, 10))
	if session.LengthKnown() {
		header.Set(HeaderUploadLength, strconv.FormatInt(session.TotalLength, 10))
	} else {
		header.Set(HeaderUploadDeferLength, "1")
	}
	if len(session.Metadata) > 0 {
		header.Set(HeaderUploadMetadata, session.Metadata.Encode())
	}
	setExpires(w, session)
}

func quoteETag(etag string) string {
	return `"` + strings.Trim(etag, `"`) + `"`
}
