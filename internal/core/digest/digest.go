package digest

import (
	_ "crypto/sha256"
	_ "crypto/sha512"
	"crypto/subtle"
	"encoding"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
	"tus-upload/internal/core/domain"

	godigest "github.com/opencontainers/go-digest"
)

// Digester accumulates bytes and yields a checksum over everything seen
type Digester interface {
	Update(p []byte) error
	// Digest returns false when the digester computes nothing
	Digest() ([]byte, bool)
	Algorithm() string
}

var supported = []godigest.Algorithm{godigest.SHA256, godigest.SHA384, godigest.SHA512}

// Supported lists the checksum algorithms accepted in Upload-Checksum
func Supported() []string {
	names := make([]string, 0, len(supported))
	for _, alg := range supported {
		names = append(names, alg.String())
	}
	return names
}

func lookup(algorithm string) (godigest.Algorithm, error) {
	name := strings.ToLower(strings.TrimSpace(algorithm))
	for _, alg := range supported {
		if alg.String() == name && alg.Available() {
			return alg, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedChecksum, algorithm)
}

type noopDigester struct{}

// NewNoop creates a digester that never produces a checksum
func NewNoop() Digester {
	return noopDigester{}
}

func (noopDigester) Update([]byte) error { return nil }

func (noopDigester) Digest() ([]byte, bool) { return nil, false }

func (noopDigester) Algorithm() string { return "" }

// Hasher is a cryptographic Digester whose state can be carried between requests
type Hasher struct {
	alg godigest.Algorithm
	h   hash.Hash
}

// New creates a cryptographic digester for algorithm
func New(algorithm string) (*Hasher, error) {
	alg, err := lookup(algorithm)
	if err != nil {
		return nil, err
	}
	return &Hasher{alg: alg, h: alg.Hash()}, nil
}

// Restore rebuilds a Hasher from a state produced by MarshalState. An empty state starts from scratch.
func Restore(algorithm string, state []byte) (*Hasher, error) {
	hasher, err := New(algorithm)
	if err != nil {
		return nil, err
	}
	if len(state) == 0 {
		return hasher, nil
	}
	u, ok := hasher.h.(encoding.BinaryUnmarshaler)
	if !ok {
		return nil, fmt.Errorf("%s hash state cannot be restored", hasher.alg)
	}
	if err := u.UnmarshalBinary(state); err != nil {
		return nil, fmt.Errorf("restore %s hash state: %w", hasher.alg, err)
	}
	return hasher, nil
}

func (d *Hasher) Update(p []byte) error {
	_, err := d.h.Write(p)
	return err
}

func (d *Hasher) Digest() ([]byte, bool) {
	return d.h.Sum(nil), true
}

func (d *Hasher) Algorithm() string {
	return d.alg.String()
}

// MarshalState snapshots the running hash
func (d *Hasher) MarshalState() ([]byte, error) {
	m, ok := d.h.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("%s hash state cannot be saved", d.alg)
	}
	return m.MarshalBinary()
}

// Sum returns the current value as an "algorithm:hex" digest string
func (d *Hasher) Sum() godigest.Digest {
	return godigest.NewDigest(d.alg, d.h)
}

// ParseChecksumHeader parses an Upload-Checksum value: "<algorithm> <base64 sum>"
func ParseChecksumHeader(header string) (*domain.Checksum, error) {
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: expected \"<algorithm> <base64>\"", domain.ErrInvalidChecksum)
	}
	alg, err := lookup(fields[0])
	if err != nil {
		return nil, err
	}
	sum, err := base64.StdEncoding.DecodeString(fields[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidChecksum, err)
	}
	if len(sum) != alg.Size() {
		return nil, fmt.Errorf("%w: %s sum must be %d bytes", domain.ErrInvalidChecksum, alg, alg.Size())
	}
	return &domain.Checksum{Algorithm: alg.String(), Sum: sum}, nil
}

// Verify compares the digester output with expected. A digester without output never fails.
func Verify(d Digester, expected []byte) error {
	got, ok := d.Digest()
	if !ok {
		return nil
	}
	if subtle.ConstantTimeCompare(got, expected) != 1 {
		return fmt.Errorf("%w: %s", domain.ErrChecksumMismatch, d.Algorithm())
	}
	return nil
}

// Base64 renders a digest string ("sha256:hex") as the base64 form used in HTTP headers
func Base64(d string) (string, error) {
	parsed, err := godigest.Parse(d)
	if err != nil {
		return "", err
	}
	raw, err := hex.DecodeString(parsed.Encoded())
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
