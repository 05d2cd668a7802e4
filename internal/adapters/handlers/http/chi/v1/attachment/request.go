package attachment

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"tus-upload/internal/core/digest"
	"tus-upload/internal/core/domain"
)

// tus request and response headers
const (
	HeaderTusResumable         = "Tus-Resumable"
	HeaderTusVersion           = "Tus-Version"
	HeaderTusMaxSize           = "Tus-Max-Size"
	HeaderTusExtension         = "Tus-Extension"
	HeaderTusChecksumAlgorithm = "Tus-Checksum-Algorithm"
	HeaderUploadLength         = "Upload-Length"
	HeaderUploadDeferLength    = "Upload-Defer-Length"
	HeaderUploadMetadata       = "Upload-Metadata"
	HeaderUploadOffset         = "Upload-Offset"
	HeaderUploadChecksum       = "Upload-Checksum"
	HeaderUploadExpires        = "Upload-Expires"
	HeaderChecksumSHA256       = "X-Checksum-Sha256"
)

// ContentTypeOffsetOctetStream is the only accepted content type for chunk bodies
const ContentTypeOffsetOctetStream = "application/offset+octet-stream"

// Extensions lists the tus extensions supported by the server
const Extensions = "creation,creation-defer-length,creation-with-upload,expiration,checksum,termination"

func parseSize(r *http.Request, name string) (*int64, error) {
	raw := r.Header.Get(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrValidation, name)
	}
	return &n, nil
}

func parseChecksum(r *http.Request) (*domain.Checksum, error) {
	raw := r.Header.Get(HeaderUploadChecksum)
	if raw == "" {
		return nil, nil
	}
	return digest.ParseChecksumHeader(raw)
}

func isOffsetStream(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == ContentTypeOffsetOctetStream
}

// readBody reads a whole chunk. Nothing is returned unless the body arrived complete.
func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.ContentLength > limit {
		return nil, fmt.Errorf("%w: chunk of %d bytes", domain.ErrUploadTooLarge, r.ContentLength)
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: request body over %d bytes", domain.ErrUploadTooLarge, maxErr.Limit)
		}
		return nil, fmt.Errorf("%w: incomplete body: %v", domain.ErrValidation, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: chunk over %d bytes", domain.ErrUploadTooLarge, limit)
	}
	return data, nil
}

// parseCreateRequest reads a POST. The desired upload id is the filename metadata value.
func parseCreateRequest(r *http.Request, maxChunk int64) (domain.CreateUploadRequest, error) {
	var req domain.CreateUploadRequest

	metadata, err := domain.ParseMetadata(r.Header.Get(HeaderUploadMetadata))
	if err != nil {
		return req, err
	}
	length, err := parseSize(r, HeaderUploadLength)
	if err != nil {
		return req, err
	}
	switch r.Header.Get(HeaderUploadDeferLength) {
	case "":
	case "1":
		req.DeferLength = true
	default:
		return req, fmt.Errorf("%w: %s must be 1", domain.ErrValidation, HeaderUploadDeferLength)
	}
	checksum, err := parseChecksum(r)
	if err != nil {
		return req, err
	}

	if isOffsetStream(r) {
		if req.Body, err = readBody(r, maxChunk); err != nil {
			return req, err
		}
	}

	req.ID = metadata[domain.MetadataFilename]
	req.UploadLength = length
	req.Metadata = metadata
	req.Checksum = checksum
	return req, nil
}

func parsePatchRequest(r *http.Request, id string, maxChunk int64) (domain.PatchRequest, error) {
	req := domain.PatchRequest{ID: id}

	if !isOffsetStream(r) {
		return req, fmt.Errorf("%w: expected %s", domain.ErrInvalidContentType, ContentTypeOffsetOctetStream)
	}
	offset, err := parseSize(r, HeaderUploadOffset)
	if err != nil {
		return req, err
	}
	if offset == nil {
		return req, fmt.Errorf("%w: %s is required", domain.ErrValidation, HeaderUploadOffset)
	}
	length, err := parseSize(r, HeaderUploadLength)
	if err != nil {
		return req, err
	}
	checksum, err := parseChecksum(r)
	if err != nil {
		return req, err
	}
	body, err := readBody(r, maxChunk)
	if err != nil {
		return req, err
	}

	req.Offset = *offset
	req.UploadLength = length
	req.Checksum = checksum
	req.Body = body
	return req, nil
}

func parseDownloadRequest(r *http.Request, id string) (domain.DownloadRequest, error) {
	req := domain.DownloadRequest{ID: id, IfNoneMatch: r.Header.Get("If-None-Match")}
	if err := domain.ValidateUploadID(id); err != nil {
		return req, err
	}
	rng, err := domain.ParseRange(r.Header.Get("Range"))
	if err != nil {
		return req, err
	}
	req.Range = rng
	return req, nil
}
