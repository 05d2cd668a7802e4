package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds the retries of a single storage call
type Policy struct {
	Attempts       int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
	Retryable      func(error) bool
}

// IsRetryable is the default predicate: transient storage errors, network timeouts and truncated reads
func IsRetryable(err error) bool {
	if errors.Is(err, domain.ErrStorageTransient) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type store struct {
	next   port.BlobStore
	policy Policy
	logger *slog.Logger
}

// New decorates next with retries. After the last attempt the error is returned unchanged.
func New(next port.BlobStore, policy Policy, logger *slog.Logger) port.BlobStore {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.Retryable == nil {
		policy.Retryable = IsRetryable
	}
	return &store{next: next, policy: policy, logger: logger}
}

func (s *store) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if s.policy.BaseDelay > 0 {
		b.InitialInterval = s.policy.BaseDelay
	}
	if s.policy.MaxDelay > 0 {
		b.MaxInterval = s.policy.MaxDelay
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.policy.Attempts-1)), ctx)
}

func (s *store) do(ctx context.Context, op, key string, bounded bool, fn func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if bounded && s.policy.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, s.policy.AttemptTimeout)
		}
		defer cancel()

		err := fn(attemptCtx)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return backoff.Permanent(err)
		case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
			return err
		case !s.policy.Retryable(err):
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("storage call failed, retrying", "op", op, "key", key, "attempt", attempt, "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(operation, s.backOff(ctx), notify)
	if err != nil && attempt > 1 {
		s.logger.Error("storage call failed", "op", op, "key", key, "attempts", attempt, "error", err)
	}
	return err
}

// Get is bounded by the caller's context only since the body is streamed after return
func (s *store) Get(ctx context.Context, key string, rng *domain.ByteRange) (*domain.StoredObject, error) {
	var object *domain.StoredObject
	err := s.do(ctx, "get", key, false, func(ctx context.Context) error {
		var err error
		object, err = s.next.Get(ctx, key, rng)
		return err
	})
	if err != nil {
		return nil, err
	}
	return object, nil
}

func (s *store) Put(ctx context.Context, key string, offset int64, data []byte) error {
	return s.do(ctx, "put", key, true, func(ctx context.Context) error {
		return s.next.Put(ctx, key, offset, data)
	})
}

func (s *store) Finalize(ctx context.Context, key string, size int64) (string, error) {
	var etag string
	err := s.do(ctx, "finalize", key, true, func(ctx context.Context) error {
		var err error
		etag, err = s.next.Finalize(ctx, key, size)
		return err
	})
	return etag, err
}

func (s *store) Delete(ctx context.Context, key string) error {
	return s.do(ctx, "delete", key, true, func(ctx context.Context) error {
		return s.next.Delete(ctx, key)
	})
}
