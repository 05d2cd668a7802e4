package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tus:lock:"

// releaseScript deletes the lock only if it still carries the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type locker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewLocker creates a lock shared by every replica using the same redis.
// ttl bounds how long a crashed holder blocks the upload.
func NewLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) port.UploadLocker {
	return &locker{client: client, ttl: ttl, logger: logger}
}

func (l *locker) Acquire(ctx context.Context, id string) (func(), error) {
	key := keyPrefix + id
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("upload %s: %w", id, domain.ErrUploadLocked)
	}

	return func() {
		// the request context may already be done, release on a short fresh deadline
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release upload lock", "upload_id", id, "error", err)
		}
	}, nil
}
