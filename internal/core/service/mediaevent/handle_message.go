package mediaevent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"tus-upload/internal/core/domain"
)

func (m *mediaEventService) HandleMessage(ctx context.Context, data []byte) error {
	var event domain.UploadCompleted

	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("could not unmarshal upload event: %v", err)
	}
	if err := domain.ValidateUploadID(event.UploadID); err != nil {
		return err
	}

	m.logger.Info("handling event", "event_id", event.EventID, "upload_id", event.UploadID, "size", event.Size)

	//sniff header
	detectedMimeType := ""
	if event.Size > 0 {
		header, err := m.readHeader(ctx, event.UploadID, event.Size)
		if errors.Is(err, domain.ErrObjectNotFound) {
			m.logger.Warn("upload vanished before processing", "upload_id", event.UploadID)
			return nil
		}
		if err != nil {
			return err
		}
		detectedMimeType = http.DetectContentType(header)
	}

	declared := extractMimeType(event.Filetype)
	if declared != "" && detectedMimeType != "" && declared != extractMimeType(detectedMimeType) {
		m.logger.Warn("declared type differs from content",
			"upload_id", event.UploadID,
			"declared", declared,
			"detected", detectedMimeType)
	}

	category := Categorize(event.Filename, event.Filetype, detectedMimeType)
	switch category {
	case domain.FileCategoryRawImage:
		m.logger.Info("dispatching raw image conversion", "upload_id", event.UploadID, "filename", event.Filename, "digest", event.Digest)
	case domain.FileCategoryVideo:
		m.logger.Info("dispatching video transcoding", "upload_id", event.UploadID, "filename", event.Filename, "digest", event.Digest)
	default:
		m.logger.Info("no processing needed", "upload_id", event.UploadID, "category", category)
	}
	return nil
}

func (m *mediaEventService) readHeader(ctx context.Context, id string, size int64) ([]byte, error) {
	object, err := m.storage.Get(ctx, id, &domain.ByteRange{Start: 0, End: min(size, sniffLength) - 1})
	if err != nil {
		return nil, err
	}
	defer object.Body.Close()

	header, err := io.ReadAll(io.LimitReader(object.Body, sniffLength))
	if err != nil {
		return nil, fmt.Errorf("could not read header of %s: %w", id, err)
	}
	return header, nil
}
