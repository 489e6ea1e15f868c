package database

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryMediaFiles(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	repo := mem.MediaFiles()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		err := repo.Create(ctx, &MediaFile{
			ID:        id,
			UserID:    "user-1",
			FileType:  "video",
			FileSize:  100,
			Bucket:    "media-files",
			ObjectKey: "user-1/" + id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	t.Run("rejects a second record for the same object", func(t *testing.T) {
		err := repo.Create(ctx, &MediaFile{ID: "d", Bucket: "media-files", ObjectKey: "user-1/a"})
		if !errors.Is(err, ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("lists newest first", func(t *testing.T) {
		files, err := repo.ListByUser(ctx, "user-1", 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(files) != 2 || files[0].ID != "c" || files[1].ID != "b" {
			t.Errorf("unexpected order: %+v", files)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := repo.Delete(ctx, "a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := repo.GetByID(ctx, "a"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	stats, err := mem.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalFiles != 2 || stats.TotalBytes != 200 || stats.VideoFiles != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestMemorySessions(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mem.now = func() time.Time { return now }
	repo := mem.Sessions()

	live := &UploadSession{ID: "live", Length: 100, ExpiresAt: now.Add(time.Hour)}
	old := &UploadSession{ID: "old", Length: 100, ExpiresAt: now.Add(-time.Hour)}
	for _, s := range []*UploadSession{live, old} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	t.Run("offset moves only from the stored value", func(t *testing.T) {
		if err := repo.UpdateOffset(ctx, "live", 0, 40); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := repo.UpdateOffset(ctx, "live", 0, 80); !errors.Is(err, ErrOffsetMismatch) {
			t.Errorf("expected ErrOffsetMismatch, got %v", err)
		}
		if err := repo.UpdateOffset(ctx, "missing", 0, 80); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		s, _ := repo.GetByID(ctx, "live")
		if s.Offset != 40 {
			t.Errorf("expected offset 40, got %d", s.Offset)
		}
	})

	t.Run("expired", func(t *testing.T) {
		expired, err := repo.GetExpired(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(expired) != 1 || expired[0].ID != "old" {
			t.Errorf("expected only the old session, got %+v", expired)
		}
	})

	stats, _ := mem.Stats(ctx)
	if stats.ActiveSessions != 1 || stats.PendingBytes != 40 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
