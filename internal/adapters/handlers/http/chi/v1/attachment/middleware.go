package attachment

import (
	"fmt"
	"net/http"
	"tus-upload/internal/core/domain"
)

// TusResumable stamps the protocol version on every response and refuses clients speaking another one
func TusResumable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderTusResumable, domain.TusVersion)

		if r.Method != http.MethodOptions {
			if version := r.Header.Get(HeaderTusResumable); version != "" && version != domain.TusVersion {
				w.Header().Set(HeaderTusVersion, domain.TusVersion)
				writeJSON(w, http.StatusPreconditionFailed, V1ErrorResponse{
					Error: fmt.Errorf("%w: %s", domain.ErrUnsupportedVersion, version).Error(),
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
