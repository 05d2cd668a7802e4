package upload

import (
	"context"
	"errors"
	"fmt"
	"tus-upload/internal/config"
	"tus-upload/internal/core/digest"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"
)

// CreateUpload allocates a new session and applies an optional inline chunk
func (s *uploadService) CreateUpload(ctx context.Context, req domain.CreateUploadRequest) (*domain.UploadSession, error) {
	id := req.ID
	if id == "" && s.cfg.GenerateIDs {
		id = s.newID()
	}
	if err := domain.ValidateUploadID(id); err != nil {
		return nil, err
	}

	if req.DeferLength == (req.UploadLength != nil) {
		return nil, fmt.Errorf("%w: exactly one of Upload-Length or Upload-Defer-Length is required", domain.ErrValidation)
	}
	var total int64
	if req.UploadLength != nil {
		total = *req.UploadLength
		if total < 0 {
			return nil, fmt.Errorf("%w: negative upload length", domain.ErrValidation)
		}
		if total > s.cfg.MaxSize {
			return nil, fmt.Errorf("%w: %d exceeds %d", domain.ErrUploadTooLarge, total, s.cfg.MaxSize)
		}
		if int64(len(req.Body)) > total {
			return nil, fmt.Errorf("%w: inline chunk exceeds upload length", domain.ErrUploadTooLarge)
		}
	}
	if int64(len(req.Body)) > s.cfg.MaxChunkSize {
		return nil, fmt.Errorf("%w: chunk of %d bytes", domain.ErrUploadTooLarge, len(req.Body))
	}

	var algorithm string
	if req.Checksum != nil {
		algorithm = req.Checksum.Algorithm
		if len(req.Body) > 0 {
			if err := verifyChunk(req.Checksum, req.Body); err != nil {
				return nil, err
			}
		}
	}

	state, err := newWholeObjectState()
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := domain.UploadSession{
		ID:                id,
		TotalLength:       total,
		DeferLength:       req.DeferLength,
		Metadata:          req.Metadata,
		ChecksumAlgorithm: algorithm,
		State:             domain.UploadSessionStateOpen,
		DigestState:       state,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         now.Add(s.cfg.SessionTTL),
	}
	if session.Metadata == nil {
		session.Metadata = domain.Metadata{}
	}

	release, err := s.locker.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	replaced := false
	txErr := s.uow.Execute(ctx, func(uow port.UnitOfWork) error {
		existing, findErr := uow.UploadSessionRepo().FindByID(ctx, id)
		switch {
		case errors.Is(findErr, domain.ErrSessionNotFound):
		case findErr != nil:
			return findErr
		default:
			stale := existing.State == domain.UploadSessionStateDeleted || existing.Expired(now)
			if !stale && s.cfg.CollisionPolicy != config.CollisionOverwrite {
				return fmt.Errorf("upload %s: %w", id, domain.ErrAlreadyExists)
			}
			if delErr := uow.UploadSessionRepo().Delete(ctx, id); delErr != nil {
				return delErr
			}
			replaced = true
			s.logger.Info("replacing existing upload", "upload_id", id, "stale", stale)
		}
		return uow.UploadSessionRepo().Create(ctx, session)
	})
	if txErr != nil {
		return nil, fmt.Errorf("could not create upload: %w", txErr)
	}

	// the old bytes go only once the new record is committed
	if replaced {
		if delErr := s.storage.Delete(ctx, id); delErr != nil && !errors.Is(delErr, domain.ErrObjectNotFound) {
			if rmErr := s.uow.UploadSessionRepo().Delete(ctx, id); rmErr != nil {
				s.logger.Error("failed to remove replacement session", "upload_id", id, "error", rmErr)
			}
			return nil, fmt.Errorf("could not remove replaced upload bytes: %w", delErr)
		}
	}

	if len(req.Body) == 0 && !session.Complete() {
		return &session, nil
	}

	// inline chunk and zero length uploads go through the append path
	appended, err := s.appendLocked(ctx, &session, domain.PatchRequest{
		ID:       id,
		Offset:   0,
		Checksum: req.Checksum,
		Body:     req.Body,
	})
	if err != nil {
		// the session exists, the client resumes from the reported offset
		s.logger.Warn("inline chunk not applied", "upload_id", id, "error", err)
		current, findErr := s.uow.UploadSessionRepo().FindByID(ctx, id)
		if findErr != nil {
			return nil, err
		}
		return current, nil
	}
	return appended, nil
}

func verifyChunk(checksum *domain.Checksum, body []byte) error {
	d, err := digest.New(checksum.Algorithm)
	if err != nil {
		return err
	}
	if err := d.Update(body); err != nil {
		return err
	}
	return digest.Verify(d, checksum.Sum)
}
