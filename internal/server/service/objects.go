package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"mediadrop/internal/server/storage"
)

// ObjectResult is returned after a direct upload.
type ObjectResult struct {
	Key  string `json:"Key"`
	Size int64  `json:"size"`
}

// PutObject stores a whole object in one call. Without upsert an existing
// key is a conflict.
func (s *UploadService) PutObject(ctx context.Context, userID, bucket, key string, data io.Reader, size int64, meta storage.ObjectMeta, upsert bool) (*ObjectResult, error) {
	if err := s.checkBucket(bucket); err != nil {
		return nil, err
	}
	if err := checkOwner(userID, key); err != nil {
		return nil, err
	}
	if size > s.cfg.MaxFileSize {
		return nil, ErrFileTooLarge
	}

	unlock := s.locks.Lock(bucket + "/" + key)
	defer unlock()

	if !upsert {
		found, err := s.exists(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		if found {
			return nil, ErrObjectExists
		}
	}

	counter := &countingReader{r: io.LimitReader(data, s.cfg.MaxFileSize+1)}
	n, err := s.store.Put(ctx, bucket, key, counter, size, meta)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			return nil, ErrInvalidRequest
		}
		if counter.n > s.cfg.MaxFileSize {
			return nil, ErrFileTooLarge
		}
		if errors.Is(err, storage.ErrSizeMismatch) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("failed to store object: %w", err)
	}
	if n > s.cfg.MaxFileSize {
		if err := s.store.Delete(ctx, bucket, key); err != nil {
			slog.Error("failed to delete oversized object", "key", key, "error", err)
		}
		return nil, ErrFileTooLarge
	}

	s.observer.ObjectStored("direct", n)
	slog.Info("object stored",
		"bucket", bucket,
		"key", key,
		"size", n,
		"content_type", meta.ContentType,
	)

	return &ObjectResult{Key: bucket + "/" + key, Size: n}, nil
}

// OpenObject serves a public read.
func (s *UploadService) OpenObject(ctx context.Context, bucket, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	if err := s.checkBucket(bucket); err != nil {
		return nil, storage.ObjectInfo{}, ErrNotFound
	}

	rc, info, err := s.store.Open(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, storage.ObjectInfo{}, ErrNotFound
		}
		return nil, storage.ObjectInfo{}, err
	}
	return rc, info, nil
}

// DeleteObject removes an object owned by userID.
func (s *UploadService) DeleteObject(ctx context.Context, userID, bucket, key string) error {
	if err := s.checkBucket(bucket); err != nil {
		return err
	}
	if err := checkOwner(userID, key); err != nil {
		return err
	}

	unlock := s.locks.Lock(bucket + "/" + key)
	defer unlock()

	found, err := s.exists(ctx, bucket, key)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}

	if err := s.store.Delete(ctx, bucket, key); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	slog.Info("object deleted", "bucket", bucket, "key", key)
	return nil
}
