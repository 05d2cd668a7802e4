package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"tus-upload/internal/config"
	"tus-upload/internal/core/domain"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	partsPrefix = "uploads/"
	finalPrefix = "attachments/"
)

// Adapter is an adapter for minio. Open uploads are kept as one object per chunk,
// keyed by offset, and merged into a single object on finalization.
type Adapter struct {
	client *minio.Client
	config config.MinioConfig
	logger *slog.Logger
}

// NewAdapter returns Adapter
func NewAdapter(ctx context.Context, cfg config.MinioConfig, logger *slog.Logger) (*Adapter, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Adapter{client: client, config: cfg, logger: logger}, nil
}

func partKey(key string, offset int64) string {
	return fmt.Sprintf("%s%s/%020d", partsPrefix, key, offset)
}

func finalKey(key string) string {
	return finalPrefix + key
}

// mapErr classifies minio errors into domain errors
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %w", domain.ErrObjectNotFound, err)
	case resp.StatusCode >= http.StatusInternalServerError || resp.Code == "SlowDown":
		return fmt.Errorf("%w: %w", domain.ErrStorageTransient, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", domain.ErrStorageTransient, err)
	}
	return err
}

// Put stores data as the part object at offset. Repeating the call overwrites the same object.
func (a *Adapter) Put(ctx context.Context, key string, offset int64, data []byte) error {
	_, err := a.client.PutObject(ctx, a.config.BucketName, partKey(key, offset), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to put part: %w", mapErr(err))
	}
	return nil
}

type part struct {
	key    string
	offset int64
	size   int64
}

func (a *Adapter) listParts(ctx context.Context, key string) ([]part, error) {
	prefix := partsPrefix + key + "/"
	var parts []part
	for info := range a.client.ListObjects(ctx, a.config.BucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("failed to list parts: %w", mapErr(info.Err))
		}
		offset, err := strconv.ParseInt(strings.TrimPrefix(info.Key, prefix), 10, 64)
		if err != nil {
			continue
		}
		parts = append(parts, part{key: info.Key, offset: offset, size: info.Size})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].offset < parts[j].offset })
	return parts, nil
}

type segment struct {
	key          string
	start, count int64
}

// chain picks the contiguous parts covering [start, end] starting from offset 0
func chain(parts []part, start, end int64) ([]segment, error) {
	byOffset := make(map[int64]part, len(parts))
	for _, p := range parts {
		byOffset[p.offset] = p
	}

	var segments []segment
	for cursor := int64(0); cursor <= end; {
		p, ok := byOffset[cursor]
		if !ok || p.size == 0 {
			return nil, fmt.Errorf("%w: missing part at offset %d", domain.ErrObjectNotFound, cursor)
		}
		partEnd := p.offset + p.size - 1
		if partEnd >= start {
			from := max(start, p.offset)
			to := min(end, partEnd)
			segments = append(segments, segment{key: p.key, start: from - p.offset, count: to - from + 1})
		}
		cursor = partEnd + 1
	}
	return segments, nil
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// openSegments returns a lazy reader over the segments. minio objects only hit the network on first read.
func (a *Adapter) openSegments(ctx context.Context, segments []segment) (*multiCloser, error) {
	mc := &multiCloser{}
	readers := make([]io.Reader, 0, len(segments))
	for _, seg := range segments {
		opts := minio.GetObjectOptions{}
		if err := opts.SetRange(seg.start, seg.start+seg.count-1); err != nil {
			mc.Close()
			return nil, fmt.Errorf("failed to set range: %w", err)
		}
		object, err := a.client.GetObject(ctx, a.config.BucketName, seg.key, opts)
		if err != nil {
			mc.Close()
			return nil, fmt.Errorf("failed to get part: %w", mapErr(err))
		}
		mc.closers = append(mc.closers, object)
		readers = append(readers, io.LimitReader(object, seg.count))
	}
	mc.Reader = io.MultiReader(readers...)
	return mc, nil
}

// Finalize merges the parts below size into attachments/{key} and removes them.
// Calling it again after success returns the existing object's ETag.
func (a *Adapter) Finalize(ctx context.Context, key string, size int64) (string, error) {
	if info, err := a.client.StatObject(ctx, a.config.BucketName, finalKey(key), minio.StatObjectOptions{}); err == nil {
		return strings.Trim(info.ETag, `"`), nil
	} else if mapped := mapErr(err); !errors.Is(mapped, domain.ErrObjectNotFound) {
		return "", fmt.Errorf("failed to stat object: %w", mapped)
	}

	parts, err := a.listParts(ctx, key)
	if err != nil {
		return "", err
	}

	var etag string
	switch {
	case size == 0:
		info, err := a.client.PutObject(ctx, a.config.BucketName, finalKey(key), bytes.NewReader(nil), 0, minio.PutObjectOptions{})
		if err != nil {
			return "", fmt.Errorf("failed to put empty object: %w", mapErr(err))
		}
		etag = info.ETag
	case len(parts) > 0 && parts[0].offset == 0 && parts[0].size == size:
		info, err := a.client.CopyObject(ctx,
			minio.CopyDestOptions{Bucket: a.config.BucketName, Object: finalKey(key)},
			minio.CopySrcOptions{Bucket: a.config.BucketName, Object: parts[0].key},
		)
		if err != nil {
			return "", fmt.Errorf("failed to copy part: %w", mapErr(err))
		}
		etag = info.ETag
	default:
		segments, err := chain(parts, 0, size-1)
		if err != nil {
			return "", err
		}
		reader, err := a.openSegments(ctx, segments)
		if err != nil {
			return "", err
		}
		info, err := a.client.PutObject(ctx, a.config.BucketName, finalKey(key), reader, size, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		})
		reader.Close()
		if err != nil {
			return "", fmt.Errorf("failed to merge parts: %w", mapErr(err))
		}
		etag = info.ETag
	}

	if err := a.removeParts(ctx, parts); err != nil {
		a.logger.Warn("failed to remove merged parts", "key", key, "error", err)
	}
	a.logger.Info("object finalized", "key", finalKey(key), "parts", len(parts), "size", size)
	return strings.Trim(etag, `"`), nil
}

// Get reads the finalized object, or the committed parts of an open upload
func (a *Adapter) Get(ctx context.Context, key string, rng *domain.ByteRange) (*domain.StoredObject, error) {
	object, err := a.getFinal(ctx, key, rng)
	if !errors.Is(err, domain.ErrObjectNotFound) {
		return object, err
	}
	object, err = a.getParts(ctx, key, rng)
	if errors.Is(err, domain.ErrObjectNotFound) {
		// a concurrent Finalize may have merged and removed the parts since the stat
		return a.getFinal(ctx, key, rng)
	}
	return object, err
}

func (a *Adapter) getFinal(ctx context.Context, key string, rng *domain.ByteRange) (*domain.StoredObject, error) {
	info, err := a.client.StatObject(ctx, a.config.BucketName, finalKey(key), minio.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to stat object: %w", mapErr(err))
	}
	opts := minio.GetObjectOptions{}
	length := info.Size
	if rng != nil {
		if err := opts.SetRange(rng.Start, rng.End); err != nil {
			return nil, fmt.Errorf("failed to set range: %w", err)
		}
		length = min(rng.Length(), info.Size-rng.Start)
	}
	object, err := a.client.GetObject(ctx, a.config.BucketName, finalKey(key), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", mapErr(err))
	}
	return &domain.StoredObject{
		Key:           finalKey(key),
		Body:          object,
		Size:          info.Size,
		ContentLength: length,
		ETag:          strings.Trim(info.ETag, `"`),
	}, nil
}

func (a *Adapter) getParts(ctx context.Context, key string, rng *domain.ByteRange) (*domain.StoredObject, error) {
	parts, err := a.listParts(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, key)
	}

	var start, end int64
	if rng != nil {
		start, end = rng.Start, rng.End
	} else {
		// without a range the contiguous prefix of parts is served
		for _, p := range parts {
			if p.offset != end {
				break
			}
			end += p.size
		}
		end--
	}
	segments, err := chain(parts, start, end)
	if err != nil {
		return nil, err
	}
	reader, err := a.openSegments(ctx, segments)
	if err != nil {
		return nil, err
	}
	var stored int64
	for _, p := range parts {
		stored = max(stored, p.offset+p.size)
	}
	return &domain.StoredObject{
		Key:           partsPrefix + key,
		Body:          &resumingReader{ctx: ctx, adapter: a, key: key, start: start, end: end, body: reader},
		Size:          stored,
		ContentLength: end - start + 1,
	}, nil
}

// resumingReader reads the parts of an open upload. When the parts disappear
// mid-read because Finalize merged them, it continues from attachments/{key}
// at the same position.
type resumingReader struct {
	ctx        context.Context
	adapter    *Adapter
	key        string
	start, end int64
	read       int64
	body       io.ReadCloser
	resumed    bool
}

func (r *resumingReader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	r.read += int64(n)
	if err == nil || err == io.EOF || r.resumed || !errors.Is(mapErr(err), domain.ErrObjectNotFound) {
		return n, err
	}

	r.resumed = true
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(r.start+r.read, r.end); err != nil {
		return n, fmt.Errorf("failed to set range: %w", err)
	}
	object, err := r.adapter.client.GetObject(r.ctx, r.adapter.config.BucketName, finalKey(r.key), opts)
	if err != nil {
		return n, fmt.Errorf("failed to get object: %w", mapErr(err))
	}
	r.body.Close()
	r.body = object
	if n > 0 {
		return n, nil
	}
	return r.Read(p)
}

func (r *resumingReader) Close() error {
	return r.body.Close()
}

func (a *Adapter) removeParts(ctx context.Context, parts []part) error {
	var errs []error
	for _, p := range parts {
		if err := a.client.RemoveObject(ctx, a.config.BucketName, p.key, minio.RemoveObjectOptions{}); err != nil {
			errs = append(errs, mapErr(err))
		}
	}
	return errors.Join(errs...)
}

// Delete removes the finalized object and every part. Missing objects are ignored.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	if err := a.client.RemoveObject(ctx, a.config.BucketName, finalKey(key), minio.RemoveObjectOptions{}); err != nil {
		if mapped := mapErr(err); !errors.Is(mapped, domain.ErrObjectNotFound) {
			return fmt.Errorf("failed to delete object: %w", mapped)
		}
	}

	parts, err := a.listParts(ctx, key)
	if err != nil {
		return err
	}
	if err := a.removeParts(ctx, parts); err != nil {
		return fmt.Errorf("failed to delete parts: %w", err)
	}

	a.logger.Info("object deleted",
		slog.String("key", key),
		slog.String("bucket", a.config.BucketName))

	return nil
}
