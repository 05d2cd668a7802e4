package port

import (
	"context"
	"tus-upload/internal/core/domain"
)

// ResponseCache keeps full GET responses of finalized uploads
type ResponseCache interface {
	Get(ctx context.Context, key string) (*domain.CachedResponse, bool, error)
	Put(ctx context.Context, key string, resp domain.CachedResponse) error
	Delete(ctx context.Context, key string) error
}
