package upload

import (
	"context"
	"log/slog"
	"time"
	"tus-upload/internal/config"
	"tus-upload/internal/core/digest"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"

	"github.com/oklog/ulid/v2"
)

// wholeObjectAlgorithm is the digest carried across chunks and attached on finalization
const wholeObjectAlgorithm = "sha256"

type uploadService struct {
	uow       port.UnitOfWork
	storage   port.BlobStore
	locker    port.UploadLocker
	publisher port.EventPublisher
	cfg       config.UploadConfig
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option customizes the upload service
type Option func(*uploadService)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *uploadService) {
		s.now = now
	}
}

// WithIDGenerator replaces the ULID generator used for server assigned ids
func WithIDGenerator(newID func() string) Option {
	return func(s *uploadService) {
		s.newID = newID
	}
}

// NewUploadService creates the upload protocol engine. publisher may be nil.
func NewUploadService(uow port.UnitOfWork, storage port.BlobStore, locker port.UploadLocker, publisher port.EventPublisher, cfg config.UploadConfig, logger *slog.Logger, opts ...Option) port.UploadService {
	s := &uploadService{
		uow:       uow,
		storage:   storage,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load returns a live session: deleted sessions are not found, expired open sessions are gone
func (s *uploadService) load(ctx context.Context, id string) (*domain.UploadSession, error) {
	session, err := s.uow.UploadSessionRepo().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.State == domain.UploadSessionStateDeleted {
		return nil, domain.ErrSessionNotFound
	}
	if session.Expired(s.now()) {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

func newWholeObjectState() ([]byte, error) {
	hasher, err := digest.New(wholeObjectAlgorithm)
	if err != nil {
		return nil, err
	}
	return hasher.MarshalState()
}
