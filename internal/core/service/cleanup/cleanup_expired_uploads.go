package cleanup

import (
	"context"
	"errors"
	"time"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"
)

// CleanupExpiredUploads removes open sessions past their expiry together with their stored bytes.
// Sessions locked by an in-flight request are left for the next run.
func (c *cleanupService) CleanupExpiredUploads(ctx context.Context, now time.Time) error {

	sessions, err := c.uow.UploadSessionRepo().FindExpired(ctx, now)
	if err != nil {
		return err
	}

	removed := 0
	for _, session := range sessions {
		if err := ctx.Err(); err != nil {
			return err
		}

		release, lockErr := c.locker.Acquire(ctx, session.ID)
		if lockErr != nil {
			c.logger.Warn("skipping expired upload", "upload_id", session.ID, "error", lockErr)
			continue
		}

		txErr := c.uow.Execute(ctx, func(uow port.UnitOfWork) error {
			current, findErr := uow.UploadSessionRepo().FindByID(ctx, session.ID)
			if errors.Is(findErr, domain.ErrSessionNotFound) {
				return nil
			}
			if findErr != nil {
				return findErr
			}
			if !current.Expired(now) {
				return nil
			}

			if executeErr := uow.UploadSessionRepo().Delete(ctx, session.ID); executeErr != nil {
				return executeErr
			}

			executeErr := c.storage.Delete(ctx, session.ID)
			if executeErr != nil && !errors.Is(executeErr, domain.ErrObjectNotFound) {
				return executeErr
			}
			return nil
		})
		release()

		if txErr != nil {
			c.logger.Error("Failed to remove expired upload", "upload_id", session.ID, "err", txErr)
			continue
		}
		removed++
	}
	c.logger.Info("expired uploads cleanup completed", "expired", len(sessions), "removed", removed)
	return nil
}
