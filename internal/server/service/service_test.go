package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"mediadrop/internal/core"
	"mediadrop/internal/server/config"
	"mediadrop/internal/server/database"
	"mediadrop/internal/server/events"
	"mediadrop/internal/server/storage"
)

const (
	testBucket = "media-files"
	testUser   = "user-1"
)

type recordingPublisher struct {
	events []events.MediaUploaded
	err    error
}

func (p *recordingPublisher) PublishMediaUploaded(_ context.Context, evt events.MediaUploaded) error {
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type countingObserver struct {
	stored   map[string]int64
	outcomes map[string]int
	records  int
	failures int
}

func (o *countingObserver) ObjectStored(path string, size int64) { o.stored[path] += size }
func (o *countingObserver) SessionFinished(outcome string)       { o.outcomes[outcome]++ }
func (o *countingObserver) RecordWritten(err error) {
	if err != nil {
		o.failures++
		return
	}
	o.records++
}

type testEnv struct {
	svc       *UploadService
	mem       *database.Memory
	store     *storage.FileSystemStore
	partials  *storage.Partials
	publisher *recordingPublisher
	observer  *countingObserver
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newWrappedTestEnv(t, func(s storage.Store) storage.Store { return s })
}

// newWrappedTestEnv builds a test env whose service writes objects through
// wrap(store).
func newWrappedTestEnv(t *testing.T, wrap func(storage.Store) storage.Store) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Buckets:       []string{testBucket},
		MaxFileSize:   1024,
		SessionExpiry: time.Hour,
	}

	mem := database.NewMemory()
	store := storage.NewFileSystemStore(t.TempDir())
	if err := store.EnsureBucket(context.Background(), testBucket); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}
	partials := storage.NewPartials(t.TempDir())
	if err := partials.EnsureDir(); err != nil {
		t.Fatalf("failed to create spool: %v", err)
	}

	env := &testEnv{
		mem:       mem,
		store:     store,
		partials:  partials,
		publisher: &recordingPublisher{},
		observer:  &countingObserver{stored: map[string]int64{}, outcomes: map[string]int{}},
	}
	env.svc = NewUploadService(Dependencies{
		Files:    mem.MediaFiles(),
		Sessions: mem.Sessions(),
		Stats:    mem,
		Store:    wrap(store),
		Partials: partials,
		Events:   env.publisher,
		Observer: env.observer,
	}, cfg)
	return env
}

func (env *testEnv) readObject(t *testing.T, key string) string {
	t.Helper()
	rc, _, err := env.svc.OpenObject(context.Background(), testBucket, key)
	if err != nil {
		t.Fatalf("failed to open %s: %v", key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("failed to read %s: %v", key, err)
	}
	return string(data)
}

// --- Direct objects ---

func TestPutObject(t *testing.T) {
	ctx := context.Background()
	meta := storage.ObjectMeta{ContentType: "video/mp4", CacheControl: "max-age=3600"}

	t.Run("stores and serves the object", func(t *testing.T) {
		env := newTestEnv(t)
		res, err := env.svc.PutObject(ctx, testUser, testBucket, "user-1/1-clip.mp4", strings.NewReader("hello"), 5, meta, false)
		if err != nil {
			t.Fatalf("PutObject failed: %v", err)
		}
		if res.Key != testBucket+"/user-1/1-clip.mp4" || res.Size != 5 {
			t.Errorf("unexpected result: %+v", res)
		}
		if got := env.readObject(t, "user-1/1-clip.mp4"); got != "hello" {
			t.Errorf("expected hello, got %q", got)
		}
		if env.observer.stored["direct"] != 5 {
			t.Errorf("expected 5 direct bytes observed, got %d", env.observer.stored["direct"])
		}
	})

	t.Run("conflicts without upsert", func(t *testing.T) {
		env := newTestEnv(t)
		key := "user-1/1-clip.mp4"
		if _, err := env.svc.PutObject(ctx, testUser, testBucket, key, strings.NewReader("a"), 1, meta, false); err != nil {
			t.Fatalf("first put failed: %v", err)
		}
		_, err := env.svc.PutObject(ctx, testUser, testBucket, key, strings.NewReader("b"), 1, meta, false)
		if !errors.Is(err, ErrObjectExists) {
			t.Fatalf("expected ErrObjectExists, got %v", err)
		}
		if _, err := env.svc.PutObject(ctx, testUser, testBucket, key, strings.NewReader("c"), 1, meta, true); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
		if got := env.readObject(t, key); got != "c" {
			t.Errorf("expected upserted content, got %q", got)
		}
	})

	t.Run("rejects foreign prefixes and unknown buckets", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.PutObject(ctx, testUser, testBucket, "user-2/x.mp4", strings.NewReader("a"), 1, meta, false)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
		_, err = env.svc.PutObject(ctx, testUser, "other", "user-1/x.mp4", strings.NewReader("a"), 1, meta, false)
		if !errors.Is(err, ErrUnknownBucket) {
			t.Errorf("expected ErrUnknownBucket, got %v", err)
		}
	})

	t.Run("short body is a bad request", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.PutObject(ctx, testUser, testBucket, "user-1/short.mp4", strings.NewReader("abc"), 10, meta, false)
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest, got %v", err)
		}
		if _, err := env.store.Stat(ctx, testBucket, "user-1/short.mp4"); !errors.Is(err, storage.ErrObjectNotFound) {
			t.Errorf("short object should not be stored, stat err: %v", err)
		}
	})

	t.Run("rejects oversized bodies", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.PutObject(ctx, testUser, testBucket, "user-1/big.mp4", strings.NewReader("a"), 2048, meta, false)
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("expected ErrFileTooLarge for declared size, got %v", err)
		}

		body := bytes.Repeat([]byte("x"), 2000)
		_, err = env.svc.PutObject(ctx, testUser, testBucket, "user-1/big.mp4", bytes.NewReader(body), -1, meta, false)
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("expected ErrFileTooLarge for streamed body, got %v", err)
		}
		if _, err := env.store.Stat(ctx, testBucket, "user-1/big.mp4"); !errors.Is(err, storage.ErrObjectNotFound) {
			t.Errorf("oversized object should not remain, stat err: %v", err)
		}
	})
}

func TestDeleteObject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	key := "user-1/1-clip.mp4"

	if _, err := env.svc.PutObject(ctx, testUser, testBucket, key, strings.NewReader("a"), 1, storage.ObjectMeta{}, false); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if err := env.svc.DeleteObject(ctx, "user-2", testBucket, key); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for another user, got %v", err)
	}
	if err := env.svc.DeleteObject(ctx, testUser, testBucket, key); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := env.svc.DeleteObject(ctx, testUser, testBucket, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, _, err := env.svc.OpenObject(ctx, testBucket, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on open, got %v", err)
	}
}

// --- Resumable sessions ---

func newSessionInput(key string, length int64) CreateSessionInput {
	return CreateSessionInput{
		Length:       length,
		Bucket:       testBucket,
		ObjectKey:    key,
		ContentType:  "video/mp4",
		CacheControl: "max-age=3600",
		Upsert:       true,
	}
}

func TestResumableSession(t *testing.T) {
	ctx := context.Background()

	t.Run("chunks assemble into the object", func(t *testing.T) {
		env := newTestEnv(t)
		key := "user-1/1-movie.mp4"

		sess, err := env.svc.CreateSession(ctx, testUser, newSessionInput(key, 10))
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if sess.ExpiresAt.Sub(sess.CreatedAt) != time.Hour {
			t.Errorf("expected one hour expiry, got %v", sess.ExpiresAt.Sub(sess.CreatedAt))
		}

		off, err := env.svc.AppendChunk(ctx, testUser, sess.ID, 0, strings.NewReader("01234"))
		if err != nil || off != 5 {
			t.Fatalf("first chunk: offset %d, err %v", off, err)
		}
		if _, err := env.store.Stat(ctx, testBucket, key); !errors.Is(err, storage.ErrObjectNotFound) {
			t.Errorf("object must not exist before the last chunk, stat err: %v", err)
		}

		off, err = env.svc.AppendChunk(ctx, testUser, sess.ID, 5, strings.NewReader("56789"))
		if err != nil || off != 10 {
			t.Fatalf("last chunk: offset %d, err %v", off, err)
		}

		if got := env.readObject(t, key); got != "0123456789" {
			t.Errorf("unexpected object content %q", got)
		}
		if _, err := env.svc.GetSession(ctx, testUser, sess.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("completed session should be gone, got %v", err)
		}
		if _, err := env.partials.Size(sess.ID); !errors.Is(err, storage.ErrPartialNotFound) {
			t.Errorf("partial should be removed, got %v", err)
		}
		if env.observer.outcomes["completed"] != 1 || env.observer.stored["resumable"] != 10 {
			t.Errorf("unexpected observations: %+v %+v", env.observer.outcomes, env.observer.stored)
		}
	})

	t.Run("wrong offset is a conflict", func(t *testing.T) {
		env := newTestEnv(t)
		sess, err := env.svc.CreateSession(ctx, testUser, newSessionInput("user-1/a.mp4", 10))
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}

		off, err := env.svc.AppendChunk(ctx, testUser, sess.ID, 3, strings.NewReader("abc"))
		if !errors.Is(err, ErrOffsetMismatch) {
			t.Fatalf("expected ErrOffsetMismatch, got %v", err)
		}
		if off != 0 {
			t.Errorf("expected current offset 0, got %d", off)
		}
	})

	t.Run("interrupted chunk keeps received bytes", func(t *testing.T) {
		env := newTestEnv(t)
		sess, err := env.svc.CreateSession(ctx, testUser, newSessionInput("user-1/a.mp4", 10))
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}

		broken := io.MultiReader(strings.NewReader("0123"), &failingReader{err: io.ErrUnexpectedEOF})
		off, err := env.svc.AppendChunk(ctx, testUser, sess.ID, 0, broken)
		if err == nil {
			t.Fatal("expected an error from the broken body")
		}
		if off != 4 {
			t.Fatalf("expected offset 4 after partial chunk, got %d", off)
		}

		got, err := env.svc.GetSession(ctx, testUser, sess.ID)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if got.Offset != 4 {
			t.Errorf("stored offset should be 4, got %d", got.Offset)
		}

		off, err = env.svc.AppendChunk(ctx, testUser, sess.ID, 4, strings.NewReader("456789"))
		if err != nil || off != 10 {
			t.Fatalf("resume: offset %d, err %v", off, err)
		}
		if data := env.readObject(t, "user-1/a.mp4"); data != "0123456789" {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("bytes past the declared length are dropped", func(t *testing.T) {
		env := newTestEnv(t)
		sess, err := env.svc.CreateSession(ctx, testUser, newSessionInput("user-1/a.mp4", 3))
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		off, err := env.svc.AppendChunk(ctx, testUser, sess.ID, 0, strings.NewReader("abcdef"))
		if err != nil || off != 3 {
			t.Fatalf("offset %d, err %v", off, err)
		}
		if data := env.readObject(t, "user-1/a.mp4"); data != "abc" {
			t.Errorf("unexpected content %q", data)
		}
	})

	t.Run("validates the request", func(t *testing.T) {
		env := newTestEnv(t)
		tests := []struct {
			name string
			in   CreateSessionInput
			want error
		}{
			{"zero length", newSessionInput("user-1/a.mp4", 0), ErrInvalidRequest},
			{"too large", newSessionInput("user-1/a.mp4", 4096), ErrFileTooLarge},
			{"foreign prefix", newSessionInput("user-2/a.mp4", 10), ErrForbidden},
			{"escaping key", newSessionInput("user-1/../a.mp4", 10), ErrInvalidRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := env.svc.CreateSession(ctx, testUser, tt.in)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("without upsert an existing object conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		key := "user-1/a.mp4"
		if _, err := env.svc.PutObject(ctx, testUser, testBucket, key, strings.NewReader("x"), 1, storage.ObjectMeta{}, false); err != nil {
			t.Fatalf("put failed: %v", err)
		}
		in := newSessionInput(key, 10)
		in.Upsert = false
		if _, err := env.svc.CreateSession(ctx, testUser, in); !errors.Is(err, ErrObjectExists) {
			t.Errorf("expected ErrObjectExists, got %v", err)
		}
	})

	t.Run("sessions are private and expire", func(t *testing.T) {
		env := newTestEnv(t)
		sess, err := env.svc.CreateSession(ctx, testUser, newSessionInput("user-1/a.mp4", 10))
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}

		if _, err := env.svc.GetSession(ctx, "user-2", sess.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for another user, got %v", err)
		}

		env.svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		if _, err := env.svc.GetSession(ctx, testUser, sess.ID); !errors.Is(err, ErrExpired) {
			t.Errorf("expected ErrExpired, got %v", err)
		}
		if _, err := env.svc.AppendChunk(ctx, testUser, sess.ID, 0, strings.NewReader("a")); !errors.Is(err, ErrExpired) {
			t.Errorf("expected ErrExpired on append, got %v", err)
		}
	})

	t.Run("terminate discards the upload", func(t *testing.T) {
		env := newTestEnv(t)
		sess, err := env.svc.CreateSession(ctx, testUser, newSessionInput("user-1/a.mp4", 10))
		if err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
		if _, err := env.svc.AppendChunk(ctx, testUser, sess.ID, 0, strings.NewReader("abc")); err != nil {
			t.Fatalf("append failed: %v", err)
		}

		if err := env.svc.TerminateSession(ctx, "user-2", sess.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for another user, got %v", err)
		}
		if err := env.svc.TerminateSession(ctx, testUser, sess.ID); err != nil {
			t.Fatalf("TerminateSession failed: %v", err)
		}
		if _, err := env.svc.GetSession(ctx, testUser, sess.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after terminate, got %v", err)
		}
		if _, err := env.partials.Size(sess.ID); !errors.Is(err, storage.ErrPartialNotFound) {
			t.Errorf("partial should be removed, got %v", err)
		}
		if env.observer.outcomes["terminated"] != 1 {
			t.Errorf("expected one terminated outcome, got %+v", env.observer.outcomes)
		}
	})
}

// flakyStore fails the first failPuts writes.
type flakyStore struct {
	storage.Store
	mu       sync.Mutex
	failPuts int
	puts     int
}

func (s *flakyStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, meta storage.ObjectMeta) (int64, error) {
	s.mu.Lock()
	s.puts++
	fail := s.puts <= s.failPuts
	s.mu.Unlock()
	if fail {
		return 0, errors.New("disk full")
	}
	return s.Store.Put(ctx, bucket, key, r, size, meta)
}

func TestResumableCompletionRetry(t *testing.T) {
	ctx := context.Background()
	key := "user-1/1-take.wav"

	var flaky *flakyStore
	env := newWrappedTestEnv(t, func(s storage.Store) storage.Store {
		flaky = &flakyStore{Store: s, failPuts: 1}
		return flaky
	})

	sess, err := env.svc.CreateSession(ctx, testUser, newSessionInput(key, 6))
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	off, err := env.svc.AppendChunk(ctx, testUser, sess.ID, 0, strings.NewReader("abcdef"))
	if err == nil {
		t.Fatal("expected the first assembly to fail")
	}
	if off != 6 {
		t.Errorf("expected offset 6 after a failed assembly, got %d", off)
	}
	if _, err := env.store.Stat(ctx, testBucket, key); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("object must not exist after a failed assembly, stat err: %v", err)
	}

	stuck, err := env.svc.GetSession(ctx, testUser, sess.ID)
	if err != nil {
		t.Fatalf("session should survive a failed assembly: %v", err)
	}
	if stuck.Offset != stuck.Length {
		t.Errorf("expected offset %d, got %d", stuck.Length, stuck.Offset)
	}

	off, err = env.svc.AppendChunk(ctx, testUser, sess.ID, 6, strings.NewReader(""))
	if err != nil || off != 6 {
		t.Fatalf("empty append at full length: offset %d, err %v", off, err)
	}
	if got := env.readObject(t, key); got != "abcdef" {
		t.Errorf("unexpected object content %q", got)
	}
	if _, err := env.svc.GetSession(ctx, testUser, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("completed session should be gone, got %v", err)
	}
	if env.observer.outcomes["failed"] != 1 || env.observer.outcomes["completed"] != 1 {
		t.Errorf("unexpected outcomes: %+v", env.observer.outcomes)
	}
	if flaky.puts != 2 {
		t.Errorf("expected 2 store writes, got %d", flaky.puts)
	}
}

func TestResumableCompletionHoldsObjectLock(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	key := "user-1/1-race.mp4"

	in := newSessionInput(key, 4)
	in.Upsert = false
	sess, err := env.svc.CreateSession(ctx, testUser, in)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := env.svc.AppendChunk(ctx, testUser, sess.ID, 0, strings.NewReader("ab")); err != nil {
		t.Fatalf("first chunk failed: %v", err)
	}

	// a direct PUT holding the object lock must finish before completion checks
	// for an existing object
	unlock := env.svc.locks.Lock(testBucket + "/" + key)
	done := make(chan error, 1)
	go func() {
		_, err := env.svc.AppendChunk(ctx, testUser, sess.ID, 2, strings.NewReader("cd"))
		done <- err
	}()

	select {
	case err := <-done:
		unlock()
		t.Fatalf("completion ran while the object was locked: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := env.store.Put(ctx, testBucket, key, strings.NewReader("xy"), 2, storage.ObjectMeta{}); err != nil {
		unlock()
		t.Fatalf("direct write failed: %v", err)
	}
	unlock()

	if err := <-done; !errors.Is(err, ErrObjectExists) {
		t.Fatalf("expected ErrObjectExists, got %v", err)
	}
	if got := env.readObject(t, key); got != "xy" {
		t.Errorf("direct upload was overwritten: %q", got)
	}
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }

// --- Media records ---

func newRecord(key string) core.MediaFileRecord {
	return core.MediaFileRecord{
		UserID:   testUser,
		FileName: "clip.mp4",
		FileURL:  "http://localhost:8080/storage/v1/object/public/" + testBucket + "/" + key,
		FileType: core.KindVideo,
		FileSize: 1,
		Source:   core.SourceUpload,
	}
}

func TestCreateRecord(t *testing.T) {
	ctx := context.Background()
	key := "user-1/1-clip.mp4"

	store := func(t *testing.T, env *testEnv) {
		t.Helper()
		if _, err := env.svc.PutObject(ctx, testUser, testBucket, key, strings.NewReader("a"), 1, storage.ObjectMeta{}, false); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}

	t.Run("inserts once the object exists", func(t *testing.T) {
		env := newTestEnv(t)
		store(t, env)

		rec, err := env.svc.CreateRecord(ctx, testUser, newRecord(key))
		if err != nil {
			t.Fatalf("CreateRecord failed: %v", err)
		}
		if rec.ID == "" || rec.Bucket != testBucket || rec.ObjectKey != key {
			t.Errorf("unexpected record: %+v", rec)
		}
		if len(env.publisher.events) != 1 || env.publisher.events[0].RecordID != rec.ID {
			t.Errorf("expected one media.uploaded event, got %+v", env.publisher.events)
		}
		if env.observer.records != 1 {
			t.Errorf("expected one record observed, got %d", env.observer.records)
		}

		list, err := env.svc.ListRecords(ctx, testUser, 0)
		if err != nil {
			t.Fatalf("ListRecords failed: %v", err)
		}
		if len(list) != 1 || ToRecord(list[0]).FileType != core.KindVideo {
			t.Errorf("unexpected list: %+v", list)
		}
	})

	t.Run("refuses records without bytes", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.CreateRecord(ctx, testUser, newRecord(key))
		if !errors.Is(err, ErrObjectMissing) {
			t.Fatalf("expected ErrObjectMissing, got %v", err)
		}
		if len(env.publisher.events) != 0 {
			t.Errorf("no event expected, got %d", len(env.publisher.events))
		}
	})

	t.Run("second record for the same object is a duplicate", func(t *testing.T) {
		env := newTestEnv(t)
		store(t, env)
		if _, err := env.svc.CreateRecord(ctx, testUser, newRecord(key)); err != nil {
			t.Fatalf("first insert failed: %v", err)
		}
		_, err := env.svc.CreateRecord(ctx, testUser, newRecord(key))
		if !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		if env.observer.failures != 1 {
			t.Errorf("expected one failed write observed, got %d", env.observer.failures)
		}
	})

	t.Run("publish failures do not fail the insert", func(t *testing.T) {
		env := newTestEnv(t)
		store(t, env)
		env.publisher.err = errors.New("broker down")
		if _, err := env.svc.CreateRecord(ctx, testUser, newRecord(key)); err != nil {
			t.Fatalf("CreateRecord failed: %v", err)
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		env := newTestEnv(t)
		store(t, env)

		other := newRecord(key)
		other.UserID = "user-2"
		if _, err := env.svc.CreateRecord(ctx, testUser, other); !errors.Is(err, ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}

		image := newRecord(key)
		image.FileType = "image"
		if _, err := env.svc.CreateRecord(ctx, testUser, image); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest for type, got %v", err)
		}

		badURL := newRecord(key)
		badURL.FileURL = "http://localhost:8080/"
		if _, err := env.svc.CreateRecord(ctx, testUser, badURL); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest for url, got %v", err)
		}
	})
}

func TestDeleteRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	key := "user-1/1-clip.mp4"
	if _, err := env.svc.PutObject(ctx, testUser, testBucket, key, strings.NewReader("a"), 1, storage.ObjectMeta{}, false); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	rec, err := env.svc.CreateRecord(ctx, testUser, newRecord(key))
	if err != nil {
		t.Fatalf("CreateRecord failed: %v", err)
	}

	if err := env.svc.DeleteRecord(ctx, "user-2", rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user, got %v", err)
	}
	if err := env.svc.DeleteRecord(ctx, testUser, rec.ID); err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}
	if err := env.svc.DeleteRecord(ctx, testUser, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestObjectFromURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{"public url", "http://h/storage/v1/object/public/media-files/u/1-a.mp4", "media-files", "u/1-a.mp4", false},
		{"path style", "http://minio:9000/media-files/u/1-a.mp4", "media-files", "u/1-a.mp4", false},
		{"bucket only", "http://h/media-files", "", "", true},
		{"empty", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, key, err := objectFromURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s/%s", bucket, key)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bucket != tt.wantBucket || key != tt.wantKey {
				t.Errorf("got %s/%s, want %s/%s", bucket, key, tt.wantBucket, tt.wantKey)
			}
		})
	}
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	if _, err := env.svc.CreateSession(ctx, testUser, newSessionInput("user-1/a.mp4", 10)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	stats, err := env.svc.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.ActiveSessions != 1 || stats.TotalFiles != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
