package postgres_test

import (
	"context"
	"testing"
	"time"
	"tus-upload/internal/adapters/repository/postgres"
	"tus-upload/internal/core/domain"

	"github.com/stretchr/testify/require"
)

func newOpenSession(id string, expiresAt time.Time) domain.UploadSession {
	now := time.Now().Round(time.Microsecond)
	return domain.UploadSession{
		ID:                id,
		TotalLength:       100,
		Metadata:          domain.Metadata{"filename": "photo.jpg", "filetype": "image/jpeg"},
		ChecksumAlgorithm: "sha256",
		State:             domain.UploadSessionStateOpen,
		DigestState:       []byte{0x01, 0x02},
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         expiresAt,
	}
}

func TestSqlUploadSessionRepository(t *testing.T) {
	dbConnection, cleanup, truncate := postgres.NewTestDB(t)
	defer cleanup()
	ctx := context.Background()

	sessionRepo := postgres.NewSQLUploadSessionRepository(dbConnection)

	t.Run("Create - Nominal case", func(t *testing.T) {
		// Arrange
		truncate()
		session := newOpenSession("photo-1", time.Now().Add(time.Hour).Round(time.Microsecond))

		// Act
		err := sessionRepo.Create(ctx, session)

		// Assert
		require.NoError(t, err)
		saved, err := sessionRepo.FindByID(ctx, session.ID)
		require.NoError(t, err)
		require.Equal(t, session.ID, saved.ID)
		require.Equal(t, session.Metadata, saved.Metadata)
		require.Equal(t, session.DigestState, saved.DigestState)
		require.Equal(t, domain.UploadSessionStateOpen, saved.State)
		require.WithinDuration(t, session.ExpiresAt, saved.ExpiresAt, time.Second)
	})

	t.Run("Create - Error if id already exists", func(t *testing.T) {
		// Arrange
		truncate()
		session := newOpenSession("dup", time.Time{})
		require.NoError(t, sessionRepo.Create(ctx, session))

		// Act
		err := sessionRepo.Create(ctx, session)

		// Assert
		require.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("Create - Deferred length without expiry", func(t *testing.T) {
		truncate()
		session := newOpenSession("deferred", time.Time{})
		session.TotalLength = 0
		session.DeferLength = true
		session.Metadata = nil

		require.NoError(t, sessionRepo.Create(ctx, session))

		saved, err := sessionRepo.FindByID(ctx, "deferred")
		require.NoError(t, err)
		require.True(t, saved.DeferLength)
		require.True(t, saved.ExpiresAt.IsZero())
		require.Equal(t, domain.Metadata{}, saved.Metadata)
	})

	t.Run("FindByID - Not found", func(t *testing.T) {
		truncate()

		_, err := sessionRepo.FindByID(ctx, "missing")

		require.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Update - Advances offset when expected offset matches", func(t *testing.T) {
		// Arrange
		truncate()
		session := newOpenSession("advance", time.Time{})
		require.NoError(t, sessionRepo.Create(ctx, session))
		session.Offset = 40
		session.DigestState = []byte{0x09}

		// Act
		err := sessionRepo.Update(ctx, session, 0)

		// Assert
		require.NoError(t, err)
		saved, err := sessionRepo.FindByID(ctx, "advance")
		require.NoError(t, err)
		require.Equal(t, int64(40), saved.Offset)
		require.Equal(t, []byte{0x09}, saved.DigestState)
	})

	t.Run("Update - Conflict on stale offset", func(t *testing.T) {
		// Arrange
		truncate()
		session := newOpenSession("stale", time.Time{})
		require.NoError(t, sessionRepo.Create(ctx, session))
		session.Offset = 10
		require.NoError(t, sessionRepo.Update(ctx, session, 0))
		session.Offset = 20

		// Act
		err := sessionRepo.Update(ctx, session, 0)

		// Assert
		require.ErrorIs(t, err, domain.ErrOffsetConflict)
		saved, _ := sessionRepo.FindByID(ctx, "stale")
		require.Equal(t, int64(10), saved.Offset)
	})

	t.Run("Update - Finalized session can no longer change", func(t *testing.T) {
		truncate()
		session := newOpenSession("final", time.Time{})
		require.NoError(t, sessionRepo.Create(ctx, session))
		session.Offset = 100
		session.State = domain.UploadSessionStateFinalized
		session.ETag = "etag"
		session.Digest = "sha256:abc"
		require.NoError(t, sessionRepo.Update(ctx, session, 0))

		err := sessionRepo.Update(ctx, session, 100)

		require.ErrorIs(t, err, domain.ErrOffsetConflict)
		saved, _ := sessionRepo.FindByID(ctx, "final")
		require.Equal(t, domain.UploadSessionStateFinalized, saved.State)
		require.Equal(t, "etag", saved.ETag)
		require.Equal(t, "sha256:abc", saved.Digest)
	})

	t.Run("Update - Not found", func(t *testing.T) {
		truncate()

		err := sessionRepo.Update(ctx, newOpenSession("ghost", time.Time{}), 0)

		require.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete - Idempotent", func(t *testing.T) {
		truncate()
		require.NoError(t, sessionRepo.Create(ctx, newOpenSession("gone", time.Time{})))

		require.NoError(t, sessionRepo.Delete(ctx, "gone"))
		require.NoError(t, sessionRepo.Delete(ctx, "gone"))

		_, err := sessionRepo.FindByID(ctx, "gone")
		require.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("FindExpired - Only open sessions past expiry", func(t *testing.T) {
		// Arrange
		truncate()
		now := time.Now()
		require.NoError(t, sessionRepo.Create(ctx, newOpenSession("expired", now.Add(-time.Hour))))
		require.NoError(t, sessionRepo.Create(ctx, newOpenSession("alive", now.Add(time.Hour))))
		require.NoError(t, sessionRepo.Create(ctx, newOpenSession("no-expiry", time.Time{})))
		done := newOpenSession("done", now.Add(-time.Hour))
		done.State = domain.UploadSessionStateFinalized
		require.NoError(t, sessionRepo.Create(ctx, done))

		// Act
		sessions, err := sessionRepo.FindExpired(ctx, now)

		// Assert
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		require.Equal(t, "expired", sessions[0].ID)
	})
}
