package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore keeps objects in an S3 compatible MinIO deployment.
type MinioStore struct {
	client *minio.Client
}

func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}
	return &MinioStore{client: client}, nil
}

func (m *MinioStore) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

func (m *MinioStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, meta ObjectMeta) (int64, error) {
	if err := ValidateKey(bucket, key); err != nil {
		return 0, err
	}

	info, err := m.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  meta.ContentType,
		CacheControl: meta.CacheControl,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return info.Size, nil
}

func (m *MinioStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	info, err := m.Stat(ctx, bucket, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return obj, info, nil
}

func (m *MinioStore) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	if err := ValidateKey(bucket, key); err != nil {
		return ObjectInfo{}, err
	}

	st, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return ObjectInfo{}, ErrObjectNotFound
		}
		return ObjectInfo{}, fmt.Errorf("failed to stat object %s: %w", key, err)
	}

	return ObjectInfo{
		Size:    st.Size,
		ModTime: st.LastModified,
		ObjectMeta: ObjectMeta{
			ContentType:  st.ContentType,
			CacheControl: st.Metadata.Get("Cache-Control"),
		},
	}, nil
}

func (m *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	if err := ValidateKey(bucket, key); err != nil {
		return err
	}
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}
