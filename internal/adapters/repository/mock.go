package repository

import (
	"context"
	"time"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"

	"github.com/stretchr/testify/mock"
)

type MockUploadSessionRepository struct {
	mock.Mock
}

func NewMockUploadSessionRepository() *MockUploadSessionRepository {
	return &MockUploadSessionRepository{}
}

func (m *MockUploadSessionRepository) Create(ctx context.Context, session domain.UploadSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockUploadSessionRepository) FindByID(ctx context.Context, id string) (*domain.UploadSession, error) {
	args := m.Called(ctx, id)
	session, _ := args.Get(0).(*domain.UploadSession)
	return session, args.Error(1)
}

func (m *MockUploadSessionRepository) Update(ctx context.Context, session domain.UploadSession, expectedOffset int64) error {
	args := m.Called(ctx, session, expectedOffset)
	return args.Error(0)
}

func (m *MockUploadSessionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUploadSessionRepository) FindExpired(ctx context.Context, now time.Time) ([]domain.UploadSession, error) {
	args := m.Called(ctx, now)
	sessions, _ := args.Get(0).([]domain.UploadSession)
	return sessions, args.Error(1)
}

type MockUnitOfWork struct {
	mock.Mock
	uploadSessionRepo *MockUploadSessionRepository
}

func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		uploadSessionRepo: &MockUploadSessionRepository{},
	}
}

func (m *MockUnitOfWork) UploadSessionRepo() port.UploadSessionRepository {
	return m.uploadSessionRepo
}

func (m *MockUnitOfWork) Execute(ctx context.Context, fn func(uow port.UnitOfWork) error) error {
	args := m.Called(ctx, fn)

	if err := fn(m); err != nil {
		return err
	}

	return args.Error(0)
}

func (m *MockUnitOfWork) GetUploadSessionRepoMock() *MockUploadSessionRepository {
	return m.uploadSessionRepo
}
