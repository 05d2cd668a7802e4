package upload

import (
	"context"
	"tus-upload/internal/core/domain"
)

// GetUpload returns the current progress of an upload
func (s *uploadService) GetUpload(ctx context.Context, id string) (*domain.UploadSession, error) {
	if err := domain.ValidateUploadID(id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}
