// Package mirror copies finished downloads into a gocloud.dev blob bucket.
//
// Bucket URLs use the gocloud scheme registry: file:///dir, mem://,
// s3://bucket?region=..., gs://bucket.
package mirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

// DefaultContentType is used when sniffing the file yields nothing better.
const DefaultContentType = "application/octet-stream"

// sniffLen is how much of the file is read for content type detection.
const sniffLen = 512

// ErrNotFound is returned when an object does not exist in the bucket.
var ErrNotFound = errors.New("object not found")

// Options configures a Mirror.
type Options struct {
	// FS is where local files are read from. Default: the host filesystem.
	FS billy.Filesystem
	// Prefix is prepended to every object key.
	Prefix string
	Logger *zerolog.Logger
}

// Object describes a mirrored blob.
type Object struct {
	Key         string
	Size        int64
	ContentType string
	SHA256      string
	Metadata    map[string]string
}

// Mirror publishes local files to a bucket.
type Mirror struct {
	bucket *blob.Bucket
	fs     billy.Filesystem
	prefix string
	log    zerolog.Logger
}

// Open opens the bucket at bucketURL.
func Open(ctx context.Context, bucketURL string, opts Options) (*Mirror, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	return New(bucket, opts), nil
}

// New wraps an already open bucket. Close closes it.
func New(bucket *blob.Bucket, opts Options) *Mirror {
	m := &Mirror{
		bucket: bucket,
		fs:     opts.FS,
		prefix: opts.Prefix,
		log:    zerolog.Nop(),
	}
	if m.fs == nil {
		m.fs = osfs.New("/")
	}
	if opts.Logger != nil {
		m.log = *opts.Logger
	}
	return m
}

// Key returns the object key for a local file path.
func (m *Mirror) Key(localPath string) string {
	return path.Join(m.prefix, filepath.Base(localPath))
}

// Publish uploads the file at localPath under its base name with the
// content type sniffed from the file and metadata attached. The sha256 of
// the uploaded bytes is written to a "<key>.sha256" sidecar object.
func (m *Mirror) Publish(ctx context.Context, localPath string, metadata map[string]string) (*Object, error) {
	key := m.Key(localPath)

	f, err := m.fs.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	contentType, err := detectContentType(f)
	if err != nil {
		return nil, fmt.Errorf("detect content type: %w", err)
	}

	md := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		if v != "" {
			md[k] = v
		}
	}

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := m.bucket.NewWriter(writeCtx, key, &blob.WriterOptions{
		ContentType: contentType,
		Metadata:    md,
	})
	if err != nil {
		return nil, fmt.Errorf("create writer: %w", err)
	}

	hash := sha256.New()
	n, err := io.Copy(w, io.TeeReader(f, hash))
	if err != nil {
		// Cancelling before Close discards the partial object.
		cancel()
		w.Close()
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize %s: %w", key, err)
	}

	sum := hex.EncodeToString(hash.Sum(nil))
	// Metadata is fixed at writer creation, so the checksum goes in a
	// sidecar object.
	if err := m.bucket.WriteAll(ctx, key+".sha256", []byte(sum+"  "+path.Base(key)+"\n"), &blob.WriterOptions{ContentType: "text/plain"}); err != nil {
		return nil, fmt.Errorf("write checksum for %s: %w", key, err)
	}

	m.log.Info().Str("key", key).Int64("bytes", n).Str("content_type", contentType).Msg("mirrored")
	return &Object{Key: key, Size: n, ContentType: contentType, SHA256: sum, Metadata: md}, nil
}

// Stat returns the attributes of a mirrored object, or ErrNotFound.
func (m *Mirror) Stat(ctx context.Context, key string) (*Object, error) {
	attrs, err := m.bucket.Attributes(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}

	obj := &Object{
		Key:         key,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Metadata:    attrs.Metadata,
	}
	if sum, err := m.bucket.ReadAll(ctx, key+".sha256"); err == nil && len(sum) >= sha256.Size*2 {
		obj.SHA256 = string(sum[:sha256.Size*2])
	}
	return obj, nil
}

// Close closes the underlying bucket.
func (m *Mirror) Close() error {
	return m.bucket.Close()
}

// detectContentType sniffs the head of f and rewinds it.
func detectContentType(f billy.File) (string, error) {
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	if n == 0 {
		return DefaultContentType, nil
	}
	return mimetype.Detect(buf[:n]).String(), nil
}
