package database

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory keeps media files and sessions in process memory. It backs
// DATABASE_URL=memory:// for local development and the service tests.
type Memory struct {
	mu       sync.Mutex
	files    map[string]MediaFile
	sessions map[string]UploadSession
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		files:    make(map[string]MediaFile),
		sessions: make(map[string]UploadSession),
		now:      time.Now,
	}
}

func (m *Memory) MediaFiles() *MemoryMediaFiles {
	return &MemoryMediaFiles{m: m}
}

func (m *Memory) Sessions() *MemorySessions {
	return &MemorySessions{m: m}
}

func (m *Memory) HealthCheck(context.Context) error {
	return nil
}

func (m *Memory) Stats(context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &Stats{}
	for _, f := range m.files {
		stats.TotalFiles++
		stats.TotalBytes += f.FileSize
		switch f.FileType {
		case "video":
			stats.VideoFiles++
		case "audio":
			stats.AudioFiles++
		}
	}
	now := m.now()
	for _, s := range m.sessions {
		if s.ExpiresAt.After(now) {
			stats.ActiveSessions++
			stats.PendingBytes += s.Offset
		}
	}
	return stats, nil
}

type MemoryMediaFiles struct {
	m *Memory
}

func (r *MemoryMediaFiles) Create(_ context.Context, f *MediaFile) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, existing := range r.m.files {
		if existing.Bucket == f.Bucket && existing.ObjectKey == f.ObjectKey {
			return ErrDuplicate
		}
	}
	r.m.files[f.ID] = *f
	return nil
}

func (r *MemoryMediaFiles) GetByID(_ context.Context, id string) (*MediaFile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	f, ok := r.m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (r *MemoryMediaFiles) ListByUser(_ context.Context, userID string, limit int) ([]*MediaFile, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var files []*MediaFile
	for _, f := range r.m.files {
		if f.UserID == userID {
			files = append(files, &f)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (r *MemoryMediaFiles) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.files[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.files, id)
	return nil
}

type MemorySessions struct {
	m *Memory
}

func (r *MemorySessions) Create(_ context.Context, s *UploadSession) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	r.m.sessions[s.ID] = *s
	return nil
}

func (r *MemorySessions) GetByID(_ context.Context, id string) (*UploadSession, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	s, ok := r.m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemorySessions) UpdateOffset(_ context.Context, id string, from, to int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	s, ok := r.m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.Offset != from {
		return ErrOffsetMismatch
	}
	s.Offset = to
	s.UpdatedAt = r.m.now()
	r.m.sessions[id] = s
	return nil
}

func (r *MemorySessions) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.sessions, id)
	return nil
}

func (r *MemorySessions) GetExpired(context.Context) ([]*UploadSession, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	now := r.m.now()
	var expired []*UploadSession
	for _, s := range r.m.sessions {
		if s.ExpiresAt.Before(now) {
			expired = append(expired, &s)
		}
	}
	return expired, nil
}
