package port

import (
	"context"
	"time"
)

// CleanupService is service that handles cleanup
type CleanupService interface {
	CleanupExpiredUploads(ctx context.Context, now time.Time) error
}
