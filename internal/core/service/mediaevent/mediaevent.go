package mediaevent

import (
	"log/slog"
	"tus-upload/internal/core/port"
)

// sniffLength is the number of leading bytes http.DetectContentType looks at
const sniffLength = 512

type mediaEventService struct {
	storage port.BlobStore
	logger  *slog.Logger
}

// NewMediaEventService creates the handler of upload completed events
func NewMediaEventService(storage port.BlobStore, logger *slog.Logger) port.MessageService {
	return &mediaEventService{
		storage: storage,
		logger:  logger,
	}
}
