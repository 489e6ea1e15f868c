package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"mediadrop/internal/server/config"
	"mediadrop/internal/server/database"
	"mediadrop/internal/server/events"
	"mediadrop/internal/server/storage"
)

// Sentinel errors for the service layer.
var (
	ErrNotFound       = errors.New("not found")
	ErrExpired        = errors.New("upload session has expired")
	ErrForbidden      = errors.New("forbidden")
	ErrUnknownBucket  = errors.New("unknown bucket")
	ErrInvalidRequest = errors.New("invalid request")
	ErrFileTooLarge   = errors.New("file exceeds maximum allowed size")
	ErrObjectExists   = errors.New("object already exists")
	ErrObjectMissing  = errors.New("referenced object does not exist")
	ErrDuplicate      = errors.New("a record for this object already exists")
	ErrOffsetMismatch = errors.New("upload offset does not match")
)

type MediaFileRepository interface {
	Create(ctx context.Context, f *database.MediaFile) error
	GetByID(ctx context.Context, id string) (*database.MediaFile, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*database.MediaFile, error)
	Delete(ctx context.Context, id string) error
}

type SessionRepository interface {
	Create(ctx context.Context, s *database.UploadSession) error
	GetByID(ctx context.Context, id string) (*database.UploadSession, error)
	UpdateOffset(ctx context.Context, id string, from, to int64) error
	Delete(ctx context.Context, id string) error
}

type StatsSource interface {
	Stats(ctx context.Context) (*database.Stats, error)
}

// Observer receives business metrics.
type Observer interface {
	ObjectStored(path string, size int64)
	SessionFinished(outcome string)
	RecordWritten(err error)
}

type Dependencies struct {
	Files    MediaFileRepository
	Sessions SessionRepository
	Stats    StatsSource
	Store    storage.Store
	Partials *storage.Partials
	Events   events.Publisher
	Observer Observer
}

// UploadService contains the business logic behind the storage, resumable
// upload and media record endpoints.
type UploadService struct {
	files    MediaFileRepository
	sessions SessionRepository
	stats    StatsSource
	store    storage.Store
	partials *storage.Partials
	events   events.Publisher
	observer Observer
	cfg      *config.Config
	buckets  map[string]bool
	locks    keyedMutex
	now      func() time.Time
}

func NewUploadService(deps Dependencies, cfg *config.Config) *UploadService {
	s := &UploadService{
		files:    deps.Files,
		sessions: deps.Sessions,
		stats:    deps.Stats,
		store:    deps.Store,
		partials: deps.Partials,
		events:   deps.Events,
		observer: deps.Observer,
		cfg:      cfg,
		buckets:  make(map[string]bool),
		now:      time.Now,
	}
	for _, b := range cfg.Buckets {
		s.buckets[b] = true
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	return s
}

// GetStats returns aggregate server statistics.
func (s *UploadService) GetStats(ctx context.Context) (*database.Stats, error) {
	return s.stats.Stats(ctx)
}

func (s *UploadService) checkBucket(bucket string) error {
	if !s.buckets[bucket] {
		return ErrUnknownBucket
	}
	return nil
}

// checkOwner enforces that users only write below their own prefix.
func checkOwner(userID, key string) error {
	if userID == "" || len(key) <= len(userID)+1 || key[:len(userID)+1] != userID+"/" {
		return ErrForbidden
	}
	return nil
}

func (s *UploadService) exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.store.Stat(ctx, bucket, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotFound):
		return false, nil
	case errors.Is(err, storage.ErrInvalidKey):
		return false, ErrInvalidRequest
	default:
		return false, err
	}
}

// keyedMutex serializes work per key, e.g. appends to one session.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

type nopObserver struct{}

func (nopObserver) ObjectStored(string, int64) {}
func (nopObserver) SessionFinished(string)     {}
func (nopObserver) RecordWritten(error)        {}

// countingReader tracks how many bytes were read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
