package fs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"tus-upload/internal/core/domain"
)

// Store keeps uploads on the local filesystem: uploads/{id}.part while open,
// attachments/{id} once finalized.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore creates the directory layout under root
func NewStore(root string, logger *slog.Logger) (*Store, error) {
	for _, dir := range []string{"uploads", "attachments"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	logger.Info("filesystem storage ready", "root", root)
	return &Store{root: root, logger: logger}, nil
}

func (s *Store) partPath(key string) string {
	return filepath.Join(s.root, "uploads", key+".part")
}

func (s *Store) finalPath(key string) string {
	return filepath.Join(s.root, "attachments", key)
}

func checkKey(key string) error {
	if err := domain.ValidateUploadID(key); err != nil {
		return fmt.Errorf("storage key: %w", err)
	}
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("%w: %w", domain.ErrObjectNotFound, err)
	}
	return err
}

// Put writes data at offset. Writing the same bytes at the same offset again leaves the file unchanged.
func (s *Store) Put(ctx context.Context, key string, offset int64, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.partPath(key), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(data, offset); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Finalize truncates the part file to size and moves it into attachments. Returns the MD5 hex ETag.
func (s *Store) Finalize(ctx context.Context, key string, size int64) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	final := s.finalPath(key)
	if _, err := os.Stat(final); err == nil {
		return fileMD5(final)
	}

	f, err := os.OpenFile(s.partPath(key), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.Truncate(size); err != nil {
		return "", err
	}
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	if err := f.Sync(); err != nil {
		return "", err
	}
	if err := os.Rename(s.partPath(key), final); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get opens the finalized object, or the part file of an open upload
func (s *Store) Get(ctx context.Context, key string, rng *domain.ByteRange) (*domain.StoredObject, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.open(key)
	if err != nil {
		return nil, mapErr(err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	object := &domain.StoredObject{Key: key, Body: f, Size: info.Size(), ContentLength: info.Size()}
	if rng == nil {
		return object, nil
	}
	if rng.Start >= info.Size() {
		f.Close()
		return nil, fmt.Errorf("%w: start %d beyond stored size %d", domain.ErrRangeNotSatisfiable, rng.Start, info.Size())
	}
	if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	length := min(rng.Length(), info.Size()-rng.Start)
	object.Body = limitedReadCloser{Reader: io.LimitReader(f, length), Closer: f}
	object.ContentLength = length
	return object, nil
}

// testHookFinalMiss runs after the finalized object was not found and before the part file is opened
var testHookFinalMiss = func() {}

// open prefers the finalized object. A part file that is gone was renamed by a
// concurrent Finalize, so the finalized object is tried once more.
func (s *Store) open(key string) (*os.File, error) {
	f, err := os.Open(s.finalPath(key))
	if !errors.Is(err, iofs.ErrNotExist) {
		return f, err
	}
	testHookFinalMiss()
	f, err = os.Open(s.partPath(key))
	if !errors.Is(err, iofs.ErrNotExist) {
		return f, err
	}
	return os.Open(s.finalPath(key))
}

// Delete removes the part file and the finalized object. Missing files are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, path := range []string{s.partPath(key), s.finalPath(key)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, iofs.ErrNotExist) {
			return err
		}
	}
	return nil
}

type limitedReadCloser struct {
	io.Reader
	io.Closer
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", mapErr(err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
