package attachment_test

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"tus-upload/internal/adapters/handlers/http/chi"
	"tus-upload/internal/adapters/handlers/http/chi/v1/attachment"
	"tus-upload/internal/core/port"
)

const basePath = "/files/attachments"

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var handlerConfig = attachment.Config{
	BasePath:           basePath,
	MaxSize:            1 << 20,
	MaxChunkSize:       1 << 10,
	CacheMaxObjectSize: 1 << 10,
}

func newRouter(service port.UploadService, cache port.ResponseCache) http.Handler {
	handler := attachment.NewAttachmentHandlerV1(service, cache, handlerConfig, discardLogger)
	return chi.NewRouter(discardLogger, handler, chi.Options{Env: "test", BasePath: basePath})
}

func tusRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set(attachment.HeaderTusResumable, "1.0.0")
	return req
}

func chunkRequest(method, target string, body string) *http.Request {
	req := tusRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", attachment.ContentTypeOffsetOctetStream)
	return req
}

// encodeMetadata renders key value pairs as an Upload-Metadata header
func encodeMetadata(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, pairs[i]+" "+base64.StdEncoding.EncodeToString([]byte(pairs[i+1])))
	}
	return strings.Join(parts, ",")
}
