package port

import (
	"context"
	"time"
	"tus-upload/internal/core/domain"
)

// UploadSessionRepository is an interface to interact with upload session repositories
type UploadSessionRepository interface {
	Create(ctx context.Context, session domain.UploadSession) error
	FindByID(ctx context.Context, id string) (*domain.UploadSession, error)
	// Update persists session only if the stored offset still equals expectedOffset and the
	// stored session is open, otherwise it returns domain.ErrOffsetConflict.
	Update(ctx context.Context, session domain.UploadSession, expectedOffset int64) error
	Delete(ctx context.Context, id string) error
	FindExpired(ctx context.Context, now time.Time) ([]domain.UploadSession, error)
}

// UploadLocker grants a single writer per upload id
type UploadLocker interface {
	Acquire(ctx context.Context, id string) (release func(), err error)
}
