package storage

import (
	"context"
	"tus-upload/internal/core/domain"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

func (m *MockStorage) Get(ctx context.Context, key string, rng *domain.ByteRange) (*domain.StoredObject, error) {
	args := m.Called(ctx, key, rng)
	object, _ := args.Get(0).(*domain.StoredObject)
	return object, args.Error(1)
}

func (m *MockStorage) Put(ctx context.Context, key string, offset int64, data []byte) error {
	args := m.Called(ctx, key, offset, data)
	return args.Error(0)
}

func (m *MockStorage) Finalize(ctx context.Context, key string, size int64) (string, error) {
	args := m.Called(ctx, key, size)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
