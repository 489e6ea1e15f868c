package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileSystemStore_Put(t *testing.T) {
	ctx := context.Background()

	t.Run("writes object and metadata", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		meta := ObjectMeta{ContentType: "video/mp4", CacheControl: "max-age=3600"}
		n, err := store.Put(ctx, "media-files", "user-1/1-clip.mp4", strings.NewReader("test content"), 12, meta)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 12 {
			t.Errorf("expected 12 bytes written, got %d", n)
		}

		content, err := os.ReadFile(filepath.Join(dir, "media-files", "user-1", "1-clip.mp4"))
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "test content" {
			t.Errorf("expected 'test content', got %q", content)
		}

		info, err := store.Stat(ctx, "media-files", "user-1/1-clip.mp4")
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Size != 12 || info.ObjectMeta != meta {
			t.Errorf("unexpected info: %+v", info)
		}
	})

	t.Run("saves large content", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		largeContent := strings.Repeat("x", 1024*1024) // 1MB
		n, err := store.Put(ctx, "media-files", "large", strings.NewReader(largeContent), -1, ObjectMeta{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != int64(len(largeContent)) {
			t.Errorf("expected %d bytes, got %d", len(largeContent), n)
		}
	})

	t.Run("rejects short bodies", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		_, err := store.Put(ctx, "media-files", "short", strings.NewReader("abc"), 10, ObjectMeta{})
		if !errors.Is(err, ErrSizeMismatch) {
			t.Fatalf("expected ErrSizeMismatch, got %v", err)
		}
		if _, err := store.Stat(ctx, "media-files", "short"); !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("short object must not be visible, got %v", err)
		}
	})

	t.Run("rejects keys escaping the bucket", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		for _, key := range []string{"../etc/passwd", "/abs", "a/../../b", "a//b", ""} {
			if _, err := store.Put(ctx, "media-files", key, strings.NewReader("x"), 1, ObjectMeta{}); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("key %q: expected ErrInvalidKey, got %v", key, err)
			}
		}
		if _, err := store.Put(ctx, ".meta", "k", strings.NewReader("x"), 1, ObjectMeta{}); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("expected hidden bucket to be rejected, got %v", err)
		}
	})
}

func TestFileSystemStore_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("reads existing object", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())
		if _, err := store.Put(ctx, "media-files", "user-1/a.wav", bytes.NewReader([]byte("data")), 4, ObjectMeta{ContentType: "audio/wav"}); err != nil {
			t.Fatalf("put: %v", err)
		}

		rc, info, err := store.Open(ctx, "media-files", "user-1/a.wav")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer rc.Close()

		data, _ := io.ReadAll(rc)
		if string(data) != "data" || info.ContentType != "audio/wav" {
			t.Errorf("unexpected object %q %+v", data, info)
		}
	})

	t.Run("returns error for missing object", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		_, _, err := store.Open(ctx, "media-files", "nonexistent")
		if !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound, got %v", err)
		}
	})
}

func TestFileSystemStore_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes existing object", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)
		if _, err := store.Put(ctx, "media-files", "del123", strings.NewReader("data"), 4, ObjectMeta{}); err != nil {
			t.Fatalf("put: %v", err)
		}

		if err := store.Delete(ctx, "media-files", "del123"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := os.Stat(filepath.Join(dir, "media-files", "del123")); !os.IsNotExist(err) {
			t.Error("expected file to be deleted")
		}
		if _, err := os.Stat(filepath.Join(dir, ".meta", "media-files", "del123.json")); !os.IsNotExist(err) {
			t.Error("expected metadata to be deleted")
		}
	})

	t.Run("no error for missing object", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		if err := store.Delete(ctx, "media-files", "nonexistent"); err != nil {
			t.Errorf("expected no error for missing file, got: %v", err)
		}
	})
}

func TestFileSystemStore_EnsureBucket(t *testing.T) {
	t.Run("creates directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "storage", "path")
		store := NewFileSystemStore(dir)

		if err := store.EnsureBucket(context.Background(), "media-files"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		info, err := os.Stat(filepath.Join(dir, "media-files"))
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected a directory")
		}
	})

	t.Run("succeeds if directory exists", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		for range 2 {
			if err := store.EnsureBucket(context.Background(), "media-files"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	})
}
