package cleanup

import (
	"log/slog"
	"tus-upload/internal/core/port"
)

type cleanupService struct {
	uow     port.UnitOfWork
	storage port.BlobStore
	locker  port.UploadLocker
	logger  *slog.Logger
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(uow port.UnitOfWork, storage port.BlobStore, locker port.UploadLocker, logger *slog.Logger) port.CleanupService {
	return &cleanupService{
		uow:     uow,
		storage: storage,
		locker:  locker,
		logger:  logger,
	}
}
