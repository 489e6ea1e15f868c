package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mediadrop/internal/uploader"
)

// MinioStore writes objects straight into an S3 compatible bucket. The
// caller's access token is not used; the store authenticates with its own
// keys.
type MinioStore struct {
	client   *minio.Client
	endpoint string
	secure   bool
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}
	return &MinioStore{client: client, endpoint: cfg.Endpoint, secure: cfg.UseSSL}, nil
}

// Put uploads body. Without Upsert an existing key fails with a 409
// StatusError, as the storage API would.
func (m *MinioStore) Put(ctx context.Context, _ uploader.AuthSession, bucket, key string, body io.Reader, size int64, opts uploader.PutOptions) error {
	if !opts.Upsert {
		_, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return &uploader.StatusError{Op: "put object", StatusCode: http.StatusConflict, Message: "the resource already exists"}
		}
		if minio.ToErrorResponse(err).StatusCode != http.StatusNotFound {
			return fmt.Errorf("failed to stat object %s: %w", key, err)
		}
	}

	_, err := m.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: maxAge(opts.CacheControl),
	})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.StatusCode != 0 {
			return &uploader.StatusError{Op: "put object", StatusCode: resp.StatusCode, Message: resp.Message}
		}
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// PublicURL is the path style URL of the object, readable when the bucket
// has an anonymous read policy.
func (m *MinioStore) PublicURL(bucket, key string) string {
	scheme := "http"
	if m.secure {
		scheme = "https"
	}
	return scheme + "://" + m.endpoint + "/" + bucket + "/" + key
}

func (m *MinioStore) Remove(ctx context.Context, _ uploader.AuthSession, bucket, key string) error {
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// maxAge turns a bare number of seconds into a Cache-Control value.
func maxAge(v string) string {
	if _, err := strconv.Atoi(v); err == nil {
		return "max-age=" + v
	}
	return v
}
