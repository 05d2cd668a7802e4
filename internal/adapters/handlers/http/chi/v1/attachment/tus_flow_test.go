package attachment_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
	cachememory "tus-upload/internal/adapters/cache/memory"
	"tus-upload/internal/adapters/handlers/http/chi/v1/attachment"
	lockmemory "tus-upload/internal/adapters/lock/memory"
	repomemory "tus-upload/internal/adapters/repository/memory"
	"tus-upload/internal/adapters/storage/fs"
	"tus-upload/internal/config"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"
	"tus-upload/internal/core/service/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTusServer(t *testing.T) http.Handler {
	t.Helper()
	return newRouter(newTusService(t), cachememory.NewCache(8))
}

func newTusService(t *testing.T) port.UploadService {
	t.Helper()
	store, err := fs.NewStore(t.TempDir(), discardLogger)
	require.NoError(t, err)

	return upload.NewUploadService(
		repomemory.NewUnitOfWork(repomemory.NewStore()),
		store,
		lockmemory.NewLocker(),
		nil,
		config.UploadConfig{
			MaxSize:         handlerConfig.MaxSize,
			MaxChunkSize:    handlerConfig.MaxChunkSize,
			SessionTTL:      time.Hour,
			CollisionPolicy: config.CollisionReject,
		},
		discardLogger,
	)
}

func patchAt(t *testing.T, h http.Handler, id string, offset int, chunk string) *httptest.ResponseRecorder {
	t.Helper()
	req := chunkRequest(http.MethodPatch, basePath+"/"+id, chunk)
	req.Header.Set(attachment.HeaderUploadOffset, strconv.Itoa(offset))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestTusFlow(t *testing.T) {
	t.Run("create, resume and download", func(t *testing.T) {
		h := newTusServer(t)

		// create
		create := tusRequest(http.MethodPost, basePath, nil)
		create.Header.Set(attachment.HeaderUploadLength, "11")
		create.Header.Set(attachment.HeaderUploadMetadata, encodeMetadata("filename", "hello.txt", "filetype", "text/plain"))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, create)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		location := w.Header().Get("Location")
		assert.Equal(t, basePath+"/hello.txt", location)

		// first chunk
		w = patchAt(t, h, "hello.txt", 0, "hello ")
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
		assert.Equal(t, "6", w.Header().Get(attachment.HeaderUploadOffset))

		// a replayed chunk is refused
		w = patchAt(t, h, "hello.txt", 0, "hello ")
		assert.Equal(t, http.StatusConflict, w.Code)

		// resume from HEAD
		w = httptest.NewRecorder()
		h.ServeHTTP(w, tusRequest(http.MethodHead, location, nil))
		require.Equal(t, http.StatusNoContent, w.Code)
		offset, err := strconv.Atoi(w.Header().Get(attachment.HeaderUploadOffset))
		require.NoError(t, err)
		assert.Equal(t, 6, offset)
		assert.Equal(t, "11", w.Header().Get(attachment.HeaderUploadLength))

		// partial content is visible while the upload is open
		w = httptest.NewRecorder()
		h.ServeHTTP(w, tusRequest(http.MethodGet, location, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hello ", w.Body.String())

		// final chunk with checksum
		sum := sha256.Sum256([]byte("world"))
		req := chunkRequest(http.MethodPatch, location, "world")
		req.Header.Set(attachment.HeaderUploadOffset, strconv.Itoa(offset))
		req.Header.Set(attachment.HeaderUploadChecksum, "sha256 "+base64.StdEncoding.EncodeToString(sum[:]))
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
		assert.Equal(t, "11", w.Header().Get(attachment.HeaderUploadOffset))

		// download
		w = httptest.NewRecorder()
		h.ServeHTTP(w, tusRequest(http.MethodGet, location, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hello world", w.Body.String())
		assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
		assert.Equal(t, "uU0nuZNNPgilLlLX2n2r+sSE7+N6U4DukIj3rOLvzek=", w.Header().Get(attachment.HeaderChecksumSHA256))
		etag := w.Header().Get("ETag")
		require.NotEmpty(t, etag)

		// revalidate
		req = tusRequest(http.MethodGet, location, nil)
		req.Header.Set("If-None-Match", etag)
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotModified, w.Code)

		// range
		req = tusRequest(http.MethodGet, location, nil)
		req.Header.Set("Range", "bytes=6-")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusPartialContent, w.Code)
		assert.Equal(t, "world", w.Body.String())
		assert.Equal(t, "bytes 6-10/11", w.Header().Get("Content-Range"))

		// terminate
		w = httptest.NewRecorder()
		h.ServeHTTP(w, tusRequest(http.MethodDelete, location, nil))
		assert.Equal(t, http.StatusNoContent, w.Code)

		// terminating twice succeeds
		w = httptest.NewRecorder()
		h.ServeHTTP(w, tusRequest(http.MethodDelete, location, nil))
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = httptest.NewRecorder()
		h.ServeHTTP(w, tusRequest(http.MethodGet, location, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		w = httptest.NewRecorder()
		h.ServeHTTP(w, tusRequest(http.MethodHead, location, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("creation with upload and deferred length", func(t *testing.T) {
		h := newTusServer(t)

		create := chunkRequest(http.MethodPost, basePath, "abc")
		create.Header.Set(attachment.HeaderUploadDeferLength, "1")
		create.Header.Set(attachment.HeaderUploadMetadata, encodeMetadata("filename", "live.log"))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, create)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, "3", w.Header().Get(attachment.HeaderUploadOffset))

		w = httptest.NewRecorder()
		h.ServeHTTP(w, tusRequest(http.MethodHead, basePath+"/live.log", nil))
		assert.Equal(t, "1", w.Header().Get(attachment.HeaderUploadDeferLength))

		req := chunkRequest(http.MethodPatch, basePath+"/live.log", "def")
		req.Header.Set(attachment.HeaderUploadOffset, "3")
		req.Header.Set(attachment.HeaderUploadLength, "6")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
		assert.Equal(t, "6", w.Header().Get(attachment.HeaderUploadOffset))

		w = httptest.NewRecorder()
		h.ServeHTTP(w, tusRequest(http.MethodGet, basePath+"/live.log", nil))
		assert.Equal(t, "abcdef", w.Body.String())
		assert.NotEmpty(t, w.Header().Get("ETag"))
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		h := newTusServer(t)

		for _, expected := range []int{http.StatusCreated, http.StatusConflict} {
			create := tusRequest(http.MethodPost, basePath, nil)
			create.Header.Set(attachment.HeaderUploadLength, "1")
			create.Header.Set(attachment.HeaderUploadMetadata, encodeMetadata("filename", "same.bin"))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, create)
			assert.Equal(t, expected, w.Code)
		}
	})

	t.Run("missing id without generation is rejected", func(t *testing.T) {
		h := newTusServer(t)

		create := tusRequest(http.MethodPost, basePath, nil)
		create.Header.Set(attachment.HeaderUploadLength, "1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, create)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// heldDownloads holds the first GetContent after it returned until resume is closed
type heldDownloads struct {
	port.UploadService
	once    sync.Once
	fetched chan struct{}
	resume  chan struct{}
}

func (s *heldDownloads) GetContent(ctx context.Context, req domain.DownloadRequest) (*domain.Download, error) {
	download, err := s.UploadService.GetContent(ctx, req)
	s.once.Do(func() { close(s.fetched) })
	<-s.resume
	return download, err
}

func TestTusFlow_DeleteDuringDownload(t *testing.T) {
	// Arrange
	service := &heldDownloads{
		UploadService: newTusService(t),
		fetched:       make(chan struct{}),
		resume:        make(chan struct{}),
	}
	h := newRouter(service, cachememory.NewCache(8))

	create := tusRequest(http.MethodPost, basePath, nil)
	create.Header.Set(attachment.HeaderUploadLength, "5")
	create.Header.Set(attachment.HeaderUploadMetadata, encodeMetadata("filename", "short.txt"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, create)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, http.StatusNoContent, patchAt(t, h, "short.txt", 0, "bytes").Code)

	inflight := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(inflight, tusRequest(http.MethodGet, basePath+"/short.txt", nil))
	}()
	<-service.fetched

	// Act
	deleted := httptest.NewRecorder()
	h.ServeHTTP(deleted, tusRequest(http.MethodDelete, basePath+"/short.txt", nil))
	close(service.resume)
	<-done

	after := httptest.NewRecorder()
	h.ServeHTTP(after, tusRequest(http.MethodGet, basePath+"/short.txt", nil))

	// Assert
	assert.Equal(t, http.StatusNoContent, deleted.Code)
	assert.Equal(t, http.StatusOK, inflight.Code)
	assert.Equal(t, "bytes", inflight.Body.String())
	assert.Equal(t, http.StatusNotFound, after.Code)
	assert.NotContains(t, after.Body.String(), "bytes")
}
