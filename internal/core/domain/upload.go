package domain

import (
	"fmt"
	"strings"
	"time"
)

// TusVersion is the protocol version spoken by the server
const TusVersion = "1.0.0"

// UploadSessionState represents the state of an upload session
type UploadSessionState string

const (
	UploadSessionStateOpen      UploadSessionState = "open"
	UploadSessionStateFinalized UploadSessionState = "finalized"
	UploadSessionStateDeleted   UploadSessionState = "deleted"
)

// UploadSession represents a resumable upload
type UploadSession struct {
	ID                string
	TotalLength       int64
	DeferLength       bool
	Offset            int64
	Metadata          Metadata
	ChecksumAlgorithm string
	State             UploadSessionState
	DigestState       []byte
	Digest            string
	ETag              string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ExpiresAt         time.Time
}

// LengthKnown reports whether the total length has been declared
func (s *UploadSession) LengthKnown() bool {
	return !s.DeferLength
}

// Expired reports whether an open session outlived its expiry
func (s *UploadSession) Expired(now time.Time) bool {
	return s.State == UploadSessionStateOpen && !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Complete reports whether every declared byte has been committed
func (s *UploadSession) Complete() bool {
	return s.LengthKnown() && s.Offset == s.TotalLength
}

// ValidateUploadID rejects ids that are empty or could escape the storage namespace
func ValidateUploadID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidUploadID)
	case strings.Contains(id, ".."):
		return fmt.Errorf("%w: path traversal detected", ErrInvalidUploadID)
	case strings.ContainsAny(id, "/\\"):
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidUploadID)
	case len(id) > 255:
		return fmt.Errorf("%w: too long", ErrInvalidUploadID)
	}
	return nil
}

// Checksum is a client supplied chunk checksum
type Checksum struct {
	Algorithm string
	Sum       []byte
}

// CreateUploadRequest is the typed form of a creation request
type CreateUploadRequest struct {
	ID           string
	UploadLength *int64
	DeferLength  bool
	Metadata     Metadata
	Checksum     *Checksum
	Body         []byte
}

// PatchRequest is the typed form of a chunk append
type PatchRequest struct {
	ID           string
	Offset       int64
	UploadLength *int64
	Checksum     *Checksum
	Body         []byte
}

// DownloadRequest is the typed form of a GET
type DownloadRequest struct {
	ID          string
	Range       *RangeSpec
	IfNoneMatch string
}

// Download is a resolved GET. Object is nil when NotModified is set.
type Download struct {
	Session     *UploadSession
	Object      *StoredObject
	Range       *ByteRange
	Partial     bool
	Complete    bool
	NotModified bool
}
