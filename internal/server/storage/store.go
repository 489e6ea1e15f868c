package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid object key")
	ErrSizeMismatch   = errors.New("object size does not match declared length")
)

// ObjectMeta is stored alongside an object and served back on reads.
type ObjectMeta struct {
	ContentType  string `json:"content_type"`
	CacheControl string `json:"cache_control"`
}

type ObjectInfo struct {
	Size    int64
	ModTime time.Time
	ObjectMeta
}

// Store defines the interface for object storage backends.
type Store interface {
	EnsureBucket(ctx context.Context, bucket string) error
	// Put writes an object, replacing any existing one. A negative size
	// means the length is unknown.
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, meta ObjectMeta) (int64, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)
	Delete(ctx context.Context, bucket, key string) error
}

// ValidateKey rejects keys that could escape their bucket.
func ValidateKey(bucket, key string) error {
	if bucket == "" || strings.ContainsAny(bucket, "/\\") || strings.HasPrefix(bucket, ".") {
		return fmt.Errorf("%w: bad bucket %q", ErrInvalidKey, bucket)
	}
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if path.Clean(key) != key {
		return fmt.Errorf("%w: %q is not canonical", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
