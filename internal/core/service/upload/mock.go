package upload

import (
	"context"
	"tus-upload/internal/core/domain"

	"github.com/stretchr/testify/mock"
)

// MockUploadService is a mock implementation of UploadService
type MockUploadService struct {
	mock.Mock
}

// NewMockUploadService creates a new MockUploadService
func NewMockUploadService() *MockUploadService {
	return &MockUploadService{}
}

func (m *MockUploadService) CreateUpload(ctx context.Context, req domain.CreateUploadRequest) (*domain.UploadSession, error) {
	args := m.Called(ctx, req)
	session, _ := args.Get(0).(*domain.UploadSession)
	return session, args.Error(1)
}

func (m *MockUploadService) GetUpload(ctx context.Context, id string) (*domain.UploadSession, error) {
	args := m.Called(ctx, id)
	session, _ := args.Get(0).(*domain.UploadSession)
	return session, args.Error(1)
}

func (m *MockUploadService) AppendChunk(ctx context.Context, req domain.PatchRequest) (*domain.UploadSession, error) {
	args := m.Called(ctx, req)
	session, _ := args.Get(0).(*domain.UploadSession)
	return session, args.Error(1)
}

func (m *MockUploadService) GetContent(ctx context.Context, req domain.DownloadRequest) (*domain.Download, error) {
	args := m.Called(ctx, req)
	download, _ := args.Get(0).(*domain.Download)
	return download, args.Error(1)
}

func (m *MockUploadService) DeleteUpload(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
