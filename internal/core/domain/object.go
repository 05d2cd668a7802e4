package domain

import (
	"io"
	"strings"
)

// StoredObject is the content of an upload as read from the blob store.
// Size is the full object size, ContentLength the number of bytes in Body.
type StoredObject struct {
	Key           string
	Body          io.ReadCloser
	Size          int64
	ContentLength int64
	ETag          string
}

// CachedResponse is a full GET response kept by the response cache
type CachedResponse struct {
	ETag        string `msgpack:"etag"`
	ContentType string `msgpack:"content_type"`
	Checksum    string `msgpack:"checksum"`
	Body        []byte `msgpack:"body"`
}

// MatchETag reports whether an If-None-Match header value matches etag
func MatchETag(header, etag string) bool {
	if header == "" || etag == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		candidate = strings.TrimPrefix(candidate, "W/")
		if strings.Trim(candidate, `"`) == strings.Trim(etag, `"`) {
			return true
		}
	}
	return false
}
