package domain

import "errors"

// ErrValidation is an error thrown when a request is malformed
var ErrValidation = errors.New("validation error")

// ErrInvalidUploadID is an error thrown when an upload id is empty or unsafe
var ErrInvalidUploadID = errors.New("invalid upload id")

// ErrInvalidMetadata is an error thrown when Upload-Metadata cannot be decoded
var ErrInvalidMetadata = errors.New("invalid upload metadata")

// ErrInvalidChecksum is an error thrown when Upload-Checksum cannot be parsed
var ErrInvalidChecksum = errors.New("invalid upload checksum")

// ErrUnsupportedChecksum is an error thrown when a checksum algorithm is not supported
var ErrUnsupportedChecksum = errors.New("unsupported checksum algorithm")

// ErrInvalidContentType is an error thrown when a chunk is not sent as application/offset+octet-stream
var ErrInvalidContentType = errors.New("invalid content type")

// ErrUnsupportedVersion is an error thrown when the client speaks another tus version
var ErrUnsupportedVersion = errors.New("unsupported tus version")

// ErrAlreadyExists is an error thrown when entity already exists
var ErrAlreadyExists = errors.New("already exists")

// ErrSessionNotFound is an error thrown when session is not found
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is an error thrown when an open session outlived its expiry
var ErrSessionExpired = errors.New("session expired")

// ErrOffsetConflict is an error thrown when a chunk offset does not match the committed offset
var ErrOffsetConflict = errors.New("upload offset conflict")

// ErrUploadLocked is an error thrown when another writer holds the session
var ErrUploadLocked = errors.New("upload is locked by another request")

// ErrChecksumMismatch is an error thrown when checksums mismatch
var ErrChecksumMismatch = errors.New("mismatched checksum")

// ErrUploadTooLarge is an error thrown when an upload or chunk exceeds the allowed size
var ErrUploadTooLarge = errors.New("upload too large")

// ErrRangeNotSatisfiable is an error thrown when a requested byte range is outside the object
var ErrRangeNotSatisfiable = errors.New("range not satisfiable")

// ErrObjectNotFound is an error thrown when the blob store has no object for a key
var ErrObjectNotFound = errors.New("object not found")

// ErrStorageTransient is an error thrown when the blob store failed in a way worth retrying
var ErrStorageTransient = errors.New("transient storage error")
