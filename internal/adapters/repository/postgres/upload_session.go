package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"

	"github.com/lib/pq"
)

const uploadSessionColumns = `id, total_length, defer_length, upload_offset, metadata, checksum_algorithm,
	status, digest_state, digest, etag, created_at, updated_at, expires_at`

type sqlUploadSessionRepository struct {
	db SQLQuerier
}

// NewSQLUploadSessionRepository Creates a new sqlUploadSessionRepository
func NewSQLUploadSessionRepository(db SQLQuerier) port.UploadSessionRepository {
	return &sqlUploadSessionRepository{db: db}
}

// Create creates an upload session
func (s *sqlUploadSessionRepository) Create(ctx context.Context, session domain.UploadSession) error {
	row, err := fromDomain(session)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO upload_session (` + uploadSessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = s.db.ExecContext(
		ctx,
		query,
		row.ID,
		row.TotalLength,
		row.DeferLength,
		row.Offset,
		string(row.Metadata),
		row.ChecksumAlgorithm,
		row.Status,
		row.DigestState,
		row.Digest,
		row.ETag,
		row.CreatedAt,
		row.UpdatedAt,
		row.ExpiresAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("upload session %s : %w", session.ID, domain.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

func (s *sqlUploadSessionRepository) FindByID(ctx context.Context, id string) (*domain.UploadSession, error) {
	query := `SELECT ` + uploadSessionColumns + ` FROM upload_session WHERE id = $1`

	var row dbUploadSession
	err := row.scan(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	return row.ToDomain()
}

// Update writes session only while the stored offset is still expectedOffset and the session is open
func (s *sqlUploadSessionRepository) Update(ctx context.Context, session domain.UploadSession, expectedOffset int64) error {
	row, err := fromDomain(session)
	if err != nil {
		return err
	}

	query := `
		UPDATE upload_session
		SET total_length = $2, defer_length = $3, upload_offset = $4, metadata = $5, checksum_algorithm = $6,
			status = $7, digest_state = $8, digest = $9, etag = $10, updated_at = now()
		WHERE id = $1 AND upload_offset = $11 AND status = 'open'`

	result, err := s.db.ExecContext(
		ctx,
		query,
		row.ID,
		row.TotalLength,
		row.DeferLength,
		row.Offset,
		string(row.Metadata),
		row.ChecksumAlgorithm,
		row.Status,
		row.DigestState,
		row.Digest,
		row.ETag,
		expectedOffset,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM upload_session WHERE id = $1)`, session.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("%w: offset moved past %d", domain.ErrOffsetConflict, expectedOffset)
	}

	return nil
}

// Delete removes the session, absent sessions are ignored
func (s *sqlUploadSessionRepository) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM upload_session WHERE id = $1`, id)
	return err
}

func (s *sqlUploadSessionRepository) FindExpired(ctx context.Context, now time.Time) ([]domain.UploadSession, error) {
	query := `
		SELECT ` + uploadSessionColumns + `
		FROM upload_session
		WHERE status = 'open' AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at`

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.UploadSession
	for rows.Next() {
		var row dbUploadSession
		if err := row.scan(rows); err != nil {
			return nil, err
		}
		session, err := row.ToDomain()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

type dbUploadSession struct {
	ID                string       `db:"id"`
	TotalLength       int64        `db:"total_length"`
	DeferLength       bool         `db:"defer_length"`
	Offset            int64        `db:"upload_offset"`
	Metadata          []byte       `db:"metadata"`
	ChecksumAlgorithm string       `db:"checksum_algorithm"`
	Status            string       `db:"status"`
	DigestState       []byte       `db:"digest_state"`
	Digest            string       `db:"digest"`
	ETag              string       `db:"etag"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at"`
	ExpiresAt         sql.NullTime `db:"expires_at"`
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *dbUploadSession) scan(row scanner) error {
	return row.Scan(
		&s.ID,
		&s.TotalLength,
		&s.DeferLength,
		&s.Offset,
		&s.Metadata,
		&s.ChecksumAlgorithm,
		&s.Status,
		&s.DigestState,
		&s.Digest,
		&s.ETag,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.ExpiresAt,
	)
}

func fromDomain(session domain.UploadSession) (*dbUploadSession, error) {
	metadata := session.Metadata
	if metadata == nil {
		metadata = domain.Metadata{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := session.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	return &dbUploadSession{
		ID:                session.ID,
		TotalLength:       session.TotalLength,
		DeferLength:       session.DeferLength,
		Offset:            session.Offset,
		Metadata:          raw,
		ChecksumAlgorithm: session.ChecksumAlgorithm,
		Status:            string(session.State),
		DigestState:       session.DigestState,
		Digest:            session.Digest,
		ETag:              session.ETag,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
		ExpiresAt:         sql.NullTime{Time: session.ExpiresAt, Valid: !session.ExpiresAt.IsZero()},
	}, nil
}

// ToDomain converts db obj to domain
func (s *dbUploadSession) ToDomain() (*domain.UploadSession, error) {
	metadata := domain.Metadata{}
	if len(s.Metadata) > 0 {
		if err := json.Unmarshal(s.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", s.ID, err)
		}
	}
	session := &domain.UploadSession{
		ID:                s.ID,
		TotalLength:       s.TotalLength,
		DeferLength:       s.DeferLength,
		Offset:            s.Offset,
		Metadata:          metadata,
		ChecksumAlgorithm: s.ChecksumAlgorithm,
		State:             domain.UploadSessionState(s.Status),
		DigestState:       s.DigestState,
		Digest:            s.Digest,
		ETag:              s.ETag,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if s.ExpiresAt.Valid {
		session.ExpiresAt = s.ExpiresAt.Time
	}
	return session, nil
}
