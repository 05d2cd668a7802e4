package upload

import (
	"context"
	"fmt"
	"strings"
	"tus-upload/internal/core/digest"
	"tus-upload/internal/core/domain"

	"github.com/google/uuid"
)

// AppendChunk applies one chunk at the session's current offset
func (s *uploadService) AppendChunk(ctx context.Context, req domain.PatchRequest) (*domain.UploadSession, error) {
	if err := domain.ValidateUploadID(req.ID); err != nil {
		return nil, err
	}
	if req.Offset < 0 {
		return nil, fmt.Errorf("%w: negative offset", domain.ErrValidation)
	}
	if int64(len(req.Body)) > s.cfg.MaxChunkSize {
		return nil, fmt.Errorf("%w: chunk of %d bytes", domain.ErrUploadTooLarge, len(req.Body))
	}

	release, err := s.locker.Acquire(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return s.appendLocked(ctx, session, req)
}

// appendLocked must be called with the session lock held
func (s *uploadService) appendLocked(ctx context.Context, session *domain.UploadSession, req domain.PatchRequest) (*domain.UploadSession, error) {
	if session.State == domain.UploadSessionStateFinalized {
		if req.Offset == session.Offset && len(req.Body) == 0 {
			return session, nil
		}
		return nil, fmt.Errorf("%w: upload is already complete", domain.ErrOffsetConflict)
	}
	if req.Offset != session.Offset {
		return nil, fmt.Errorf("%w: expected offset %d, got %d", domain.ErrOffsetConflict, session.Offset, req.Offset)
	}

	updated := *session
	if req.UploadLength != nil {
		if err := s.applyDeferredLength(&updated, *req.UploadLength); err != nil {
			return nil, err
		}
	}

	end := updated.Offset + int64(len(req.Body))
	if updated.LengthKnown() && end > updated.TotalLength {
		return nil, fmt.Errorf("%w: chunk ends at %d, upload length is %d", domain.ErrUploadTooLarge, end, updated.TotalLength)
	}
	if !updated.LengthKnown() && end > s.cfg.MaxSize {
		return nil, fmt.Errorf("%w: %d exceeds %d", domain.ErrUploadTooLarge, end, s.cfg.MaxSize)
	}

	if req.Checksum != nil {
		if updated.ChecksumAlgorithm != "" && !strings.EqualFold(req.Checksum.Algorithm, updated.ChecksumAlgorithm) {
			return nil, fmt.Errorf("%w: upload uses %s checksums", domain.ErrValidation, updated.ChecksumAlgorithm)
		}
		if err := verifyChunk(req.Checksum, req.Body); err != nil {
			return nil, err
		}
	}

	whole, err := digest.Restore(wholeObjectAlgorithm, updated.DigestState)
	if err != nil {
		return nil, err
	}
	if len(req.Body) > 0 {
		if err := s.storage.Put(ctx, updated.ID, updated.Offset, req.Body); err != nil {
			return nil, fmt.Errorf("could not store chunk at offset %d: %w", updated.Offset, err)
		}
		if err := whole.Update(req.Body); err != nil {
			return nil, err
		}
	}

	if updated.DigestState, err = whole.MarshalState(); err != nil {
		return nil, err
	}
	updated.Offset = end
	updated.UpdatedAt = s.now()
	if updated.Complete() {
		updated.Digest = whole.Sum().String()
	}

	if err := s.uow.UploadSessionRepo().Update(ctx, updated, session.Offset); err != nil {
		return nil, err
	}

	if updated.Complete() {
		if err := s.finalize(ctx, &updated); err != nil {
			return nil, err
		}
	}
	return &updated, nil
}

func (s *uploadService) applyDeferredLength(session *domain.UploadSession, length int64) error {
	if session.LengthKnown() {
		if length != session.TotalLength {
			return fmt.Errorf("%w: upload length is already %d", domain.ErrValidation, session.TotalLength)
		}
		return nil
	}
	if length < session.Offset {
		return fmt.Errorf("%w: upload length %d is below offset %d", domain.ErrValidation, length, session.Offset)
	}
	if length > s.cfg.MaxSize {
		return fmt.Errorf("%w: %d exceeds %d", domain.ErrUploadTooLarge, length, s.cfg.MaxSize)
	}
	session.TotalLength = length
	session.DeferLength = false
	return nil
}

// finalize seals the stored bytes and marks the session finalized. A failure leaves the
// session open at offset == length so a later empty Patch retries it.
func (s *uploadService) finalize(ctx context.Context, session *domain.UploadSession) error {
	etag, err := s.storage.Finalize(ctx, session.ID, session.TotalLength)
	if err != nil {
		return fmt.Errorf("could not finalize upload: %w", err)
	}

	session.State = domain.UploadSessionStateFinalized
	session.ETag = etag
	session.UpdatedAt = s.now()
	if err := s.uow.UploadSessionRepo().Update(ctx, *session, session.Offset); err != nil {
		return err
	}
	s.logger.Info("upload finalized", "upload_id", session.ID, "size", session.TotalLength, "digest", session.Digest)

	s.publishCompleted(ctx, session)
	return nil
}

func (s *uploadService) publishCompleted(ctx context.Context, session *domain.UploadSession) {
	if s.publisher == nil {
		return
	}
	event := domain.UploadCompleted{
		EventID:     uuid.NewString(),
		UploadID:    session.ID,
		Size:        session.TotalLength,
		Filename:    session.Metadata[domain.MetadataFilename],
		Filetype:    session.Metadata[domain.MetadataFiletype],
		Metadata:    session.Metadata,
		Digest:      session.Digest,
		ETag:        session.ETag,
		CompletedAt: session.UpdatedAt,
	}
	if err := s.publisher.PublishUploadCompleted(ctx, event); err != nil {
		s.logger.Warn("failed to publish upload completed event", "upload_id", session.ID, "error", err)
	}
}
