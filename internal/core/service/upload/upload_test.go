package upload_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
	"tus-upload/internal/adapters/repository"
	"tus-upload/internal/adapters/storage"
	"tus-upload/internal/config"
	"tus-upload/internal/core/digest"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/service/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var testUploadConfig = config.UploadConfig{
	MaxSize:         1 << 20,
	MaxChunkSize:    1 << 16,
	SessionTTL:      time.Hour,
	CollisionPolicy: config.CollisionReject,
}

type stubLocker struct {
	err      error
	acquired int
	released int
}

func (l *stubLocker) Acquire(_ context.Context, _ string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() { l.released++ }, nil
}

type recordingPublisher struct {
	events []domain.UploadCompleted
	err    error
}

func (p *recordingPublisher) PublishUploadCompleted(_ context.Context, event domain.UploadCompleted) error {
	p.events = append(p.events, event)
	return p.err
}

func sha256Of(data string) []byte {
	sum := sha256.Sum256([]byte(data))
	return sum[:]
}

func freshDigestState() ([]byte, error) {
	hasher, err := digest.New("sha256")
	if err != nil {
		return nil, err
	}
	return hasher.MarshalState()
}

func openSession(id string, offset, total int64) *domain.UploadSession {
	return &domain.UploadSession{
		ID:          id,
		TotalLength: total,
		Offset:      offset,
		Metadata:    domain.Metadata{},
		State:       domain.UploadSessionStateOpen,
	}
}

func TestUploadService_AppendChunk_OffsetConflict(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	mockStorage := storage.NewMockStorage()
	locker := &stubLocker{}
	service := upload.NewUploadService(mockUow, mockStorage, locker, nil, testUploadConfig, discardLogger)

	mockUow.GetUploadSessionRepoMock().On("FindByID", ctx, "a1").Return(openSession("a1", 10, 100), nil)

	// Act
	session, err := service.AppendChunk(ctx, domain.PatchRequest{ID: "a1", Offset: 5, Body: []byte("hello")})

	// Assert
	assert.Nil(t, session)
	assert.ErrorIs(t, err, domain.ErrOffsetConflict)
	mockStorage.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockUow.GetUploadSessionRepoMock().AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, locker.released)
}

func TestUploadService_AppendChunk_Locked(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	mockStorage := storage.NewMockStorage()
	locker := &stubLocker{err: domain.ErrUploadLocked}
	service := upload.NewUploadService(mockUow, mockStorage, locker, nil, testUploadConfig, discardLogger)

	// Act
	_, err := service.AppendChunk(ctx, domain.PatchRequest{ID: "busy", Body: []byte("x")})

	// Assert
	assert.ErrorIs(t, err, domain.ErrUploadLocked)
	mockUow.GetUploadSessionRepoMock().AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestUploadService_AppendChunk_StorageFailureKeepsOffset(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	mockStorage := storage.NewMockStorage()
	service := upload.NewUploadService(mockUow, mockStorage, &stubLocker{}, nil, testUploadConfig, discardLogger)

	session := openSession("a2", 0, 10)
	state, err := freshDigestState()
	require.NoError(t, err)
	session.DigestState = state

	mockUow.GetUploadSessionRepoMock().On("FindByID", ctx, "a2").Return(session, nil)
	mockStorage.On("Put", ctx, "a2", int64(0), []byte("abc")).Return(domain.ErrStorageTransient)

	// Act
	_, err = service.AppendChunk(ctx, domain.PatchRequest{ID: "a2", Offset: 0, Body: []byte("abc")})

	// Assert
	assert.ErrorIs(t, err, domain.ErrStorageTransient)
	mockUow.GetUploadSessionRepoMock().AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	mockStorage.AssertExpectations(t)
}

func TestUploadService_AppendChunk_ChecksumMismatch(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	mockStorage := storage.NewMockStorage()
	service := upload.NewUploadService(mockUow, mockStorage, &stubLocker{}, nil, testUploadConfig, discardLogger)

	mockUow.GetUploadSessionRepoMock().On("FindByID", ctx, "a3").Return(openSession("a3", 0, 10), nil)

	// Act
	_, err := service.AppendChunk(ctx, domain.PatchRequest{
		ID:       "a3",
		Body:     []byte("abc"),
		Checksum: &domain.Checksum{Algorithm: "sha256", Sum: sha256Of("abd")},
	})

	// Assert
	assert.ErrorIs(t, err, domain.ErrChecksumMismatch)
	mockStorage.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUploadService_AppendChunk_ChunkBeyondLength(t *testing.T) {
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	mockStorage := storage.NewMockStorage()
	service := upload.NewUploadService(mockUow, mockStorage, &stubLocker{}, nil, testUploadConfig, discardLogger)

	mockUow.GetUploadSessionRepoMock().On("FindByID", ctx, "a4").Return(openSession("a4", 8, 10), nil)

	_, err := service.AppendChunk(ctx, domain.PatchRequest{ID: "a4", Offset: 8, Body: []byte("abc")})

	assert.ErrorIs(t, err, domain.ErrUploadTooLarge)
}

func TestUploadService_AppendChunk_FinalizeFailureLeavesSessionOpen(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	mockStorage := storage.NewMockStorage()
	publisher := &recordingPublisher{}
	service := upload.NewUploadService(mockUow, mockStorage, &stubLocker{}, publisher, testUploadConfig, discardLogger)

	session := openSession("a5", 0, 3)
	state, err := freshDigestState()
	require.NoError(t, err)
	session.DigestState = state

	repo := mockUow.GetUploadSessionRepoMock()
	repo.On("FindByID", ctx, "a5").Return(session, nil)
	mockStorage.On("Put", ctx, "a5", int64(0), []byte("abc")).Return(nil)
	repo.On("Update", ctx, mock.MatchedBy(func(s domain.UploadSession) bool {
		return s.Offset == 3 && s.State == domain.UploadSessionStateOpen
	}), int64(0)).Return(nil)
	mockStorage.On("Finalize", ctx, "a5", int64(3)).Return("", errors.New("disk full"))

	// Act
	_, err = service.AppendChunk(ctx, domain.PatchRequest{ID: "a5", Body: []byte("abc")})

	// Assert
	assert.Error(t, err)
	repo.AssertNumberOfCalls(t, "Update", 1)
	assert.Empty(t, publisher.events)
}

func TestUploadService_AppendChunk_PublishesOnCompletion(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	mockStorage := storage.NewMockStorage()
	publisher := &recordingPublisher{err: errors.New("broker down")}
	service := upload.NewUploadService(mockUow, mockStorage, &stubLocker{}, publisher, testUploadConfig, discardLogger)

	session := openSession("a6", 0, 3)
	session.Metadata = domain.Metadata{"filename": "a.txt", "filetype": "text/plain"}
	state, err := freshDigestState()
	require.NoError(t, err)
	session.DigestState = state

	repo := mockUow.GetUploadSessionRepoMock()
	repo.On("FindByID", ctx, "a6").Return(session, nil)
	mockStorage.On("Put", ctx, "a6", int64(0), []byte("abc")).Return(nil)
	repo.On("Update", ctx, mock.AnythingOfType("domain.UploadSession"), mock.AnythingOfType("int64")).Return(nil)
	mockStorage.On("Finalize", ctx, "a6", int64(3)).Return("etag-1", nil)

	// Act
	result, err := service.AppendChunk(ctx, domain.PatchRequest{ID: "a6", Body: []byte("abc")})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.UploadSessionStateFinalized, result.State)
	assert.Equal(t, "etag-1", result.ETag)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, "a6", publisher.events[0].UploadID)
	assert.Equal(t, "a.txt", publisher.events[0].Filename)
	assert.Equal(t, "text/plain", publisher.events[0].Filetype)
	assert.Equal(t, result.Digest, publisher.events[0].Digest)
	assert.NotEmpty(t, publisher.events[0].EventID)
}

func TestUploadService_CreateUpload_Validation(t *testing.T) {
	ctx := context.Background()
	service := upload.NewUploadService(repository.NewMockUnitOfWork(), storage.NewMockStorage(), &stubLocker{}, nil, testUploadConfig, discardLogger)
	length := int64(10)
	huge := int64(1 << 30)

	tests := []struct {
		name    string
		req     domain.CreateUploadRequest
		wantErr error
	}{
		{"missing id", domain.CreateUploadRequest{UploadLength: &length}, domain.ErrInvalidUploadID},
		{"path traversal", domain.CreateUploadRequest{ID: "../etc", UploadLength: &length}, domain.ErrInvalidUploadID},
		{"length and defer", domain.CreateUploadRequest{ID: "x", UploadLength: &length, DeferLength: true}, domain.ErrValidation},
		{"neither length nor defer", domain.CreateUploadRequest{ID: "x"}, domain.ErrValidation},
		{"too large", domain.CreateUploadRequest{ID: "x", UploadLength: &huge}, domain.ErrUploadTooLarge},
		{"inline body beyond length", domain.CreateUploadRequest{ID: "x", UploadLength: &length, Body: make([]byte, 11)}, domain.ErrUploadTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateUpload(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUploadService_CreateUpload_RejectsExisting(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	mockStorage := storage.NewMockStorage()
	service := upload.NewUploadService(mockUow, mockStorage, &stubLocker{}, nil, testUploadConfig, discardLogger)
	length := int64(10)

	mockUow.On("Execute", ctx, mock.Anything).Return(nil)
	mockUow.GetUploadSessionRepoMock().On("FindByID", ctx, "taken").Return(openSession("taken", 0, 10), nil)

	// Act
	_, err := service.CreateUpload(ctx, domain.CreateUploadRequest{ID: "taken", UploadLength: &length})

	// Assert
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	mockStorage.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	mockUow.GetUploadSessionRepoMock().AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUploadService_CreateUpload_OverwriteKeepsBytesWhenCreateFails(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	mockStorage := storage.NewMockStorage()
	cfg := testUploadConfig
	cfg.CollisionPolicy = config.CollisionOverwrite
	service := upload.NewUploadService(mockUow, mockStorage, &stubLocker{}, nil, cfg, discardLogger)
	length := int64(10)

	repo := mockUow.GetUploadSessionRepoMock()
	mockUow.On("Execute", ctx, mock.Anything).Return(nil)
	repo.On("FindByID", ctx, "report.pdf").Return(openSession("report.pdf", 4, 10), nil)
	repo.On("Delete", ctx, "report.pdf").Return(nil)
	repo.On("Create", ctx, mock.Anything).Return(assert.AnError)

	// Act
	_, err := service.CreateUpload(ctx, domain.CreateUploadRequest{ID: "report.pdf", UploadLength: &length})

	// Assert
	assert.ErrorIs(t, err, assert.AnError)
	mockStorage.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUploadService_CreateUpload_OverwriteRemovesBytesAfterCommit(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	mockStorage := storage.NewMockStorage()
	cfg := testUploadConfig
	cfg.CollisionPolicy = config.CollisionOverwrite
	service := upload.NewUploadService(mockUow, mockStorage, &stubLocker{}, nil, cfg, discardLogger)
	length := int64(10)

	repo := mockUow.GetUploadSessionRepoMock()
	created := false
	mockUow.On("Execute", ctx, mock.Anything).Return(nil)
	repo.On("FindByID", ctx, "report.pdf").Return(openSession("report.pdf", 4, 10), nil)
	repo.On("Delete", ctx, "report.pdf").Return(nil)
	repo.On("Create", ctx, mock.Anything).Return(nil).Run(func(mock.Arguments) { created = true })
	mockStorage.On("Delete", ctx, "report.pdf").Return(nil).Run(func(mock.Arguments) {
		assert.True(t, created, "old bytes removed before the new session was stored")
	})

	// Act
	session, err := service.CreateUpload(ctx, domain.CreateUploadRequest{ID: "report.pdf", UploadLength: &length})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(0), session.Offset)
	mockStorage.AssertExpectations(t)
}

func TestUploadService_CreateUpload_OverwriteStorageFailureDropsNewSession(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	mockStorage := storage.NewMockStorage()
	cfg := testUploadConfig
	cfg.CollisionPolicy = config.CollisionOverwrite
	service := upload.NewUploadService(mockUow, mockStorage, &stubLocker{}, nil, cfg, discardLogger)
	length := int64(10)

	repo := mockUow.GetUploadSessionRepoMock()
	mockUow.On("Execute", ctx, mock.Anything).Return(nil)
	repo.On("FindByID", ctx, "report.pdf").Return(openSession("report.pdf", 4, 10), nil)
	repo.On("Delete", ctx, "report.pdf").Return(nil)
	repo.On("Create", ctx, mock.Anything).Return(nil)
	mockStorage.On("Delete", ctx, "report.pdf").Return(domain.ErrStorageTransient)

	// Act
	_, err := service.CreateUpload(ctx, domain.CreateUploadRequest{ID: "report.pdf", UploadLength: &length})

	// Assert
	assert.ErrorIs(t, err, domain.ErrStorageTransient)
	repo.AssertNumberOfCalls(t, "Delete", 2)
}

func TestUploadService_CreateUpload_GeneratesID(t *testing.T) {
	// Arrange
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	cfg := testUploadConfig
	cfg.GenerateIDs = true
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	service := upload.NewUploadService(mockUow, storage.NewMockStorage(), &stubLocker{}, nil, cfg, discardLogger,
		upload.WithIDGenerator(func() string { return "generated" }),
		upload.WithClock(func() time.Time { return now }),
	)
	length := int64(10)

	repo := mockUow.GetUploadSessionRepoMock()
	mockUow.On("Execute", ctx, mock.Anything).Return(nil)
	repo.On("FindByID", ctx, "generated").Return((*domain.UploadSession)(nil), domain.ErrSessionNotFound)
	repo.On("Create", ctx, mock.MatchedBy(func(s domain.UploadSession) bool {
		return s.ID == "generated" && s.TotalLength == 10 && s.ExpiresAt.Equal(now.Add(time.Hour))
	})).Return(nil)

	// Act
	session, err := service.CreateUpload(ctx, domain.CreateUploadRequest{UploadLength: &length})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "generated", session.ID)
	assert.Equal(t, int64(0), session.Offset)
	repo.AssertExpectations(t)
}

func TestUploadService_DeleteUpload_Unknown(t *testing.T) {
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	mockStorage := storage.NewMockStorage()
	service := upload.NewUploadService(mockUow, mockStorage, &stubLocker{}, nil, testUploadConfig, discardLogger)

	mockUow.GetUploadSessionRepoMock().On("FindByID", ctx, "ghost").Return(nil, domain.ErrSessionNotFound)

	err := service.DeleteUpload(ctx, "ghost")

	assert.NoError(t, err)
	mockStorage.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUploadService_GetUpload_Expired(t *testing.T) {
	ctx := context.Background()
	mockUow := repository.NewMockUnitOfWork()
	now := time.Now()
	service := upload.NewUploadService(mockUow, storage.NewMockStorage(), &stubLocker{}, nil, testUploadConfig, discardLogger,
		upload.WithClock(func() time.Time { return now }))

	session := openSession("old", 1, 10)
	session.ExpiresAt = now.Add(-time.Minute)
	mockUow.GetUploadSessionRepoMock().On("FindByID", ctx, "old").Return(session, nil)

	_, err := service.GetUpload(ctx, "old")

	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}
