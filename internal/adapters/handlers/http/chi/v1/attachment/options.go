package attachment

import (
	"net/http"
	"strconv"
	"strings"
	"tus-upload/internal/core/digest"
	"tus-upload/internal/core/domain"
)

// OptionsV1 announces the server capabilities
func (h *HandlerV1) OptionsV1(w http.ResponseWriter, r *http.Request) {
	header := w.Header()
	header.Set(HeaderTusVersion, domain.TusVersion)
	header.Set(HeaderTusMaxSize, strconv.FormatInt(h.config.MaxSize, 10))
	header.Set(HeaderTusExtension, Extensions)
	header.Set(HeaderTusChecksumAlgorithm, strings.Join(digest.Supported(), ","))
	w.WriteHeader(http.StatusNoContent)
}
