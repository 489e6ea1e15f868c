package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSystemStore stores objects on the local filesystem under
// {base}/{bucket}/{key}, with metadata in {base}/.meta/{bucket}/{key}.json.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureBucket creates the bucket directory if it doesn't exist.
func (fs *FileSystemStore) EnsureBucket(_ context.Context, bucket string) error {
	dir := filepath.Join(fs.basePath, bucket)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create bucket directory %s: %w", dir, err)
	}
	return nil
}

// Put writes data through a temporary file and renames it into place, so a
// reader never sees a partial object.
func (fs *FileSystemStore) Put(ctx context.Context, bucket, key string, data io.Reader, size int64, meta ObjectMeta) (int64, error) {
	if err := ValidateKey(bucket, key); err != nil {
		return 0, err
	}

	filePath := fs.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create file for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: data})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write object: %w", err)
	}
	if size >= 0 && n != size {
		return 0, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, n, size)
	}

	if err := fs.writeMeta(bucket, key, meta); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return 0, fmt.Errorf("failed to move object into place: %w", err)
	}

	return n, nil
}

func (fs *FileSystemStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	info, err := fs.Stat(ctx, bucket, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	f, err := os.Open(fs.objectPath(bucket, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ObjectInfo{}, ErrObjectNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("failed to open object: %w", err)
	}
	return f, info, nil
}

func (fs *FileSystemStore) Stat(_ context.Context, bucket, key string) (ObjectInfo, error) {
	if err := ValidateKey(bucket, key); err != nil {
		return ObjectInfo{}, err
	}

	st, err := os.Stat(fs.objectPath(bucket, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ObjectInfo{}, ErrObjectNotFound
		}
		return ObjectInfo{}, fmt.Errorf("failed to stat object: %w", err)
	}

	info := ObjectInfo{Size: st.Size(), ModTime: st.ModTime()}
	if data, err := os.ReadFile(fs.metaPath(bucket, key)); err == nil {
		_ = json.Unmarshal(data, &info.ObjectMeta)
	}
	return info, nil
}

// Delete removes an object and its metadata. Missing objects are not an error.
func (fs *FileSystemStore) Delete(_ context.Context, bucket, key string) error {
	if err := ValidateKey(bucket, key); err != nil {
		return err
	}

	filePath := fs.objectPath(bucket, key)
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	if err := os.Remove(fs.metaPath(bucket, key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete object metadata %s: %w", key, err)
	}
	return nil
}

func (fs *FileSystemStore) writeMeta(bucket, key string, meta ObjectMeta) error {
	metaPath := fs.metaPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(metaPath), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write object metadata: %w", err)
	}
	return nil
}

func (fs *FileSystemStore) objectPath(bucket, key string) string {
	return filepath.Join(fs.basePath, bucket, filepath.FromSlash(key))
}

func (fs *FileSystemStore) metaPath(bucket, key string) string {
	return filepath.Join(fs.basePath, ".meta", bucket, filepath.FromSlash(key)+".json")
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
