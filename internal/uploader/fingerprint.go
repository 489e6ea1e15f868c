package uploader

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"mediadrop/internal/core"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// Fingerprint identifies a local file uploaded by owner against a resumable
// endpoint so an interrupted upload of the same bytes can be found again. Any
// change in name, type, size or modification time produces a new
// fingerprint, and owners sharing a store never share one.
func Fingerprint(f core.MediaFile, owner, endpoint string) string {
	parts := []string{
		owner,
		f.Name,
		f.MIMEType,
		strconv.FormatInt(f.Size, 10),
		strconv.FormatInt(f.ModTime.UnixMilli(), 10),
		endpoint,
	}
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x00")))
	return "tus-" + hex.EncodeToString(sum[:16])
}

// StoredSession is what gets remembered about an upload session so it can be
// resumed later.
type StoredSession struct {
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	ObjectKey string    `json:"object_key"`
	CreatedAt time.Time `json:"created_at"`
}

// FingerprintStore remembers unfinished upload sessions by fingerprint.
// Find returns the most recent session first.
type FingerprintStore interface {
	Find(ctx context.Context, fingerprint string) ([]StoredSession, error)
	Save(ctx context.Context, fingerprint string, s StoredSession) error
	Remove(ctx context.Context, fingerprint string) error
}

func newestFirst(list []StoredSession) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

// MemoryFingerprintStore keeps sessions for the life of the process.
type MemoryFingerprintStore struct {
	mu       sync.Mutex
	sessions map[string][]StoredSession
}

func NewMemoryFingerprintStore() *MemoryFingerprintStore {
	return &MemoryFingerprintStore{sessions: make(map[string][]StoredSession)}
}

func (m *MemoryFingerprintStore) Find(_ context.Context, fp string) ([]StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]StoredSession(nil), m.sessions[fp]...)
	newestFirst(out)
	return out, nil
}

func (m *MemoryFingerprintStore) Save(_ context.Context, fp string, s StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[fp] = append(m.sessions[fp], s)
	return nil
}

func (m *MemoryFingerprintStore) Remove(_ context.Context, fp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, fp)
	return nil
}

// FileFingerprintStore persists sessions in a JSON file so uploads can be
// resumed by a later run of the CLI.
type FileFingerprintStore struct {
	mu   sync.Mutex
	path string
}

func NewFileFingerprintStore(path string) *FileFingerprintStore {
	return &FileFingerprintStore{path: path}
}

func (s *FileFingerprintStore) Find(_ context.Context, fp string) ([]StoredSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	out := all[fp]
	newestFirst(out)
	return out, nil
}

func (s *FileFingerprintStore) Save(_ context.Context, fp string, session StoredSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	all[fp] = append(all[fp], session)
	return s.write(all)
}

func (s *FileFingerprintStore) Remove(_ context.Context, fp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := all[fp]; !ok {
		return nil
	}
	delete(all, fp)
	return s.write(all)
}

// All returns every remembered session keyed by fingerprint.
func (s *FileFingerprintStore) All() (map[string][]StoredSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileFingerprintStore) load() (map[string][]StoredSession, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string][]StoredSession), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read resume store %s: %w", s.path, err)
	}

	all := make(map[string][]StoredSession)
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse resume store %s: %w", s.path, err)
	}
	return all, nil
}

func (s *FileFingerprintStore) write(all map[string][]StoredSession) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create resume store directory: %w", err)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode resume store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write resume store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace resume store: %w", err)
	}
	return nil
}

// RedisFingerprintStore shares resumable sessions between machines, e.g. a
// pool of render nodes picking up each other's interrupted uploads.
type RedisFingerprintStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisFingerprintStore(client *redis.Client, ttl time.Duration) *RedisFingerprintStore {
	return &RedisFingerprintStore{
		client: client,
		prefix: "mediadrop:resume:",
		ttl:    ttl,
	}
}

func (r *RedisFingerprintStore) Find(ctx context.Context, fp string) ([]StoredSession, error) {
	raw, err := r.client.LRange(ctx, r.prefix+fp, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read resume sessions: %w", err)
	}

	out := make([]StoredSession, 0, len(raw))
	for _, item := range raw {
		var s StoredSession
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	newestFirst(out)
	return out, nil
}

func (r *RedisFingerprintStore) Save(ctx context.Context, fp string, s StoredSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	key := r.prefix + fp
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save resume session: %w", err)
	}
	return nil
}

func (r *RedisFingerprintStore) Remove(ctx context.Context, fp string) error {
	if err := r.client.Del(ctx, r.prefix+fp).Err(); err != nil {
		return fmt.Errorf("failed to remove resume session: %w", err)
	}
	return nil
}
