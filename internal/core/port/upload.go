package port

import (
	"context"
	"tus-upload/internal/core/domain"
)

// UploadService is the resumable upload protocol engine
type UploadService interface {
	CreateUpload(ctx context.Context, req domain.CreateUploadRequest) (*domain.UploadSession, error)
	GetUpload(ctx context.Context, id string) (*domain.UploadSession, error)
	AppendChunk(ctx context.Context, req domain.PatchRequest) (*domain.UploadSession, error)
	GetContent(ctx context.Context, req domain.DownloadRequest) (*domain.Download, error)
	DeleteUpload(ctx context.Context, id string) error
}
