package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"tus-upload/internal/core/domain"
)

// GetContent resolves a download. Unfinalized uploads only expose their committed bytes.
func (s *uploadService) GetContent(ctx context.Context, req domain.DownloadRequest) (*domain.Download, error) {
	if err := domain.ValidateUploadID(req.ID); err != nil {
		return nil, err
	}

	session, err := s.load(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	complete := session.State == domain.UploadSessionStateFinalized
	if complete && domain.MatchETag(req.IfNoneMatch, session.ETag) {
		return &domain.Download{Session: session, Complete: true, NotModified: true}, nil
	}

	committed := session.Offset
	var rng *domain.ByteRange
	if req.Range != nil {
		resolved, err := req.Range.Resolve(committed)
		if err != nil {
			return nil, err
		}
		rng = &resolved
	}

	if committed == 0 {
		return &domain.Download{
			Session:  session,
			Object:   &domain.StoredObject{Key: session.ID, Body: io.NopCloser(bytes.NewReader(nil)), ETag: session.ETag},
			Complete: complete,
		}, nil
	}

	read := rng
	if read == nil && !complete {
		read = &domain.ByteRange{Start: 0, End: committed - 1}
	}
	object, err := s.storage.Get(ctx, session.ID, read)
	if err != nil {
		return nil, fmt.Errorf("could not read upload %s: %w", session.ID, err)
	}
	object.Size = committed
	if object.ETag == "" {
		object.ETag = session.ETag
	}

	return &domain.Download{
		Session:  session,
		Object:   object,
		Range:    rng,
		Partial:  rng != nil,
		Complete: complete,
	}, nil
}
