// Package storage serves wiki file metadata from a Cloud Storage bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/url"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
)

const (
	defaultPublicBaseURL = "https://storage.googleapis.com"
	defaultHeaderBytes   = 64 << 10

	// MetadataWidth and MetadataHeight are the object metadata keys holding pixel
	// dimensions recorded at upload time.
	MetadataWidth  = "width"
	MetadataHeight = "height"
)

var errBucketRequired = errors.New("storage: bucket name is required")

type objectReader interface {
	Attrs(ctx context.Context, name string) (*storage.ObjectAttrs, error)
	Header(ctx context.Context, name string, n int64) (io.ReadCloser, error)
}

type bucketReader struct {
	bucket *storage.BucketHandle
}

func (b bucketReader) Attrs(ctx context.Context, name string) (*storage.ObjectAttrs, error) {
	return b.bucket.Object(name).Attrs(ctx)
}

func (b bucketReader) Header(ctx context.Context, name string, n int64) (io.ReadCloser, error) {
	return b.bucket.Object(name).NewRangeReader(ctx, 0, n)
}

// FileStore resolves uploaded files to public URLs and pixel dimensions.
type FileStore struct {
	objects     objectReader
	bucket      string
	baseURL     string
	headerBytes int64
}

// Option customises a FileStore.
type Option func(*FileStore)

// WithPublicBaseURL overrides the URL prefix for public object links.
func WithPublicBaseURL(base string) Option {
	return func(s *FileStore) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			s.baseURL = base
		}
	}
}

// WithHeaderBytes bounds how much of an object is read to detect its dimensions.
func WithHeaderBytes(n int64) Option {
	return func(s *FileStore) {
		if n > 0 {
			s.headerBytes = n
		}
	}
}

// NewFileStore returns a FileStore reading from bucket.
func NewFileStore(client *storage.Client, bucket string, opts ...Option) (*FileStore, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	return newFileStore(bucketReader{bucket: client.Bucket(bucket)}, bucket, opts...)
}

func newFileStore(objects objectReader, bucket string, opts ...Option) (*FileStore, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errBucketRequired
	}
	s := &FileStore{
		objects:     objects,
		bucket:      bucket,
		baseURL:     defaultPublicBaseURL + "/" + bucket,
		headerBytes: defaultHeaderBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Find returns the file stored under name. Missing objects yield host.ErrNotFound.
// Dimensions come from object metadata when present and are otherwise decoded from
// the image header; undecodable objects report 0x0.
func (s *FileStore) Find(ctx context.Context, name string) (host.File, error) {
	attrs, err := s.objects.Attrs(ctx, name)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return host.File{}, fmt.Errorf("storage: %s: %w", name, host.ErrNotFound)
	}
	if err != nil {
		return host.File{}, fmt.Errorf("storage: attrs %s: %w", name, err)
	}

	file := host.File{Name: name, URL: s.publicURL(name)}
	width, wok := metadataInt(attrs.Metadata, MetadataWidth)
	height, hok := metadataInt(attrs.Metadata, MetadataHeight)
	if wok && hok {
		file.Width, file.Height = width, height
		return file, nil
	}

	if cfg, err := s.decodeHeader(ctx, name); err == nil {
		file.Width, file.Height = cfg.Width, cfg.Height
	}
	return file, nil
}

func (s *FileStore) decodeHeader(ctx context.Context, name string) (image.Config, error) {
	rc, err := s.objects.Header(ctx, name, s.headerBytes)
	if err != nil {
		return image.Config{}, err
	}
	defer rc.Close()

	buf, err := io.ReadAll(io.LimitReader(rc, s.headerBytes))
	if err != nil {
		return image.Config{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(buf))
	return cfg, err
}

func (s *FileStore) publicURL(name string) string {
	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

func metadataInt(meta map[string]string, key string) (int, bool) {
	raw, ok := meta[key]
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
