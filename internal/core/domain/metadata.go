package domain

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

// Metadata is the decoded Upload-Metadata of a session
type Metadata map[string]string

// Well known metadata keys sent by tus clients
const (
	MetadataFilename = "filename"
	MetadataFiletype = "filetype"
)

// ParseMetadata decodes an Upload-Metadata header: comma separated pairs of a key and an
// optional base64 value.
func ParseMetadata(header string) (Metadata, error) {
	md := Metadata{}
	if strings.TrimSpace(header) == "" {
		return md, nil
	}

	for _, pair := range strings.Split(header, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			return nil, fmt.Errorf("%w: empty pair", ErrInvalidMetadata)
		}
		fields := strings.Fields(pair)
		if len(fields) > 2 {
			return nil, fmt.Errorf("%w: malformed pair %q", ErrInvalidMetadata, pair)
		}
		key := fields[0]
		if _, dup := md[key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalidMetadata, key)
		}
		if len(fields) == 1 {
			md[key] = ""
			continue
		}
		value, err := base64.StdEncoding.DecodeString(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %w", ErrInvalidMetadata, key, err)
		}
		md[key] = string(value)
	}
	return md, nil
}

// Encode renders the metadata back to the Upload-Metadata wire format with sorted keys
func (m Metadata) Encode() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		if m[k] == "" {
			pairs = append(pairs, k)
			continue
		}
		pairs = append(pairs, k+" "+base64.StdEncoding.EncodeToString([]byte(m[k])))
	}
	return strings.Join(pairs, ",")
}

// ContentType returns the declared file type or a binary default
func (m Metadata) ContentType() string {
	if ct := m[MetadataFiletype]; ct != "" {
		return ct
	}
	return "application/octet-stream"
}
