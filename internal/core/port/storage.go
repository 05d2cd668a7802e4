package port

import (
	"context"
	"tus-upload/internal/core/domain"
)

// BlobStore is an interface to define object storage interactions.
// Put is addressed by offset and must be idempotent for identical content at the same offset.
type BlobStore interface {
	Get(ctx context.Context, key string, rng *domain.ByteRange) (*domain.StoredObject, error)
	Put(ctx context.Context, key string, offset int64, data []byte) error
	// Finalize seals the first size bytes of key into an immutable object and returns its ETag
	Finalize(ctx context.Context, key string, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}
