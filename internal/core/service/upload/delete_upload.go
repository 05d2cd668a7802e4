package upload

import (
	"context"
	"errors"
	"fmt"
	"tus-upload/internal/core/domain"
)

// DeleteUpload removes the session and every stored byte. Deleting an unknown upload succeeds.
func (s *uploadService) DeleteUpload(ctx context.Context, id string) error {
	if err := domain.ValidateUploadID(id); err != nil {
		return err
	}

	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.uow.UploadSessionRepo().FindByID(ctx, id); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return err
	}

	if err := s.storage.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrObjectNotFound) {
		return fmt.Errorf("could not delete stored bytes: %w", err)
	}
	if err := s.uow.UploadSessionRepo().Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("upload deleted", "upload_id", id)
	return nil
}
