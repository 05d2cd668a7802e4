package memory

import (
	"context"
	"fmt"
	"sync"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"
)

type locker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocker creates an in-process keyed try-lock. A busy id is rejected, never queued.
func NewLocker() port.UploadLocker {
	return &locker{held: make(map[string]struct{})}
}

func (l *locker) Acquire(ctx context.Context, id string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[id]; busy {
		return nil, fmt.Errorf("upload %s: %w", id, domain.ErrUploadLocked)
	}
	l.held[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, id)
			l.mu.Unlock()
		})
	}, nil
}
