package uploader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"mediadrop/internal/core"
)

func testPolicy() core.Policy {
	p := core.DefaultPolicy()
	p.ProgressTick = 5 * time.Millisecond
	p.SimulatedBudget = 100 * time.Millisecond
	p.SuccessDisplay = 20 * time.Millisecond
	p.RetryDelays = []time.Duration{0, 30 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}
	return p
}

var testAuth = AuthSession{UserID: "user-1", AccessToken: "token"}

// patternFile is a ReaderAt of arbitrary size that holds no memory.
type patternFile int64

func patternByte(off int64) byte {
	return byte(off % 251)
}

func (f patternFile) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(f) {
		return 0, io.EOF
	}
	n := min(int64(len(p)), int64(f)-off)
	for i := range n {
		p[i] = patternByte(off + i)
	}
	if n < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

func mediaFile(name, mimeType string, size int64) core.MediaFile {
	return core.MediaFile{
		Path:     "/tmp/" + name,
		Name:     name,
		Size:     size,
		MIMEType: mimeType,
		ModTime:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

type fakeObjects struct {
	mu        sync.Mutex
	objects   map[string]int64
	puts      []PutOptions
	removed   []string
	putDelay  time.Duration
	putErr    error
	removeErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string]int64)}
}

func (f *fakeObjects) Put(ctx context.Context, _ AuthSession, bucket, key string, body io.Reader, size int64, opts PutOptions) error {
	if f.putDelay > 0 {
		select {
		case <-time.After(f.putDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, opts)
	if f.putErr != nil {
		return f.putErr
	}
	if _, ok := f.objects[bucket+"/"+key]; ok && !opts.Upsert {
		return &StatusError{Op: "put", StatusCode: http.StatusConflict}
	}
	if n != size {
		return fmt.Errorf("short body: %d of %d", n, size)
	}
	f.objects[bucket+"/"+key] = n
	return nil
}

func (f *fakeObjects) PublicURL(bucket, key string) string {
	return "https://cdn.test/" + bucket + "/" + key
}

func (f *fakeObjects) Remove(_ context.Context, _ AuthSession, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, key)
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeObjects) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

type fakeRecords struct {
	mu        sync.Mutex
	inserted  []core.MediaFileRecord
	insertErr error
}

func (f *fakeRecords) Insert(_ context.Context, _ AuthSession, rec core.MediaFileRecord) (core.MediaFileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return core.MediaFileRecord{}, f.insertErr
	}
	rec.ID = fmt.Sprintf("rec-%d", len(f.inserted)+1)
	rec.CreatedAt = time.Now()
	f.inserted = append(f.inserted, rec)
	return rec, nil
}

func (f *fakeRecords) Delete(context.Context, AuthSession, string) error {
	return nil
}

type fakeSession struct {
	size   int64
	offset int64
	meta   SessionMetadata
}

// fakeTransport is an in-memory resumable endpoint. appendHook runs before
// every append; accept controls whether the bytes are stored and a non-nil
// error fails the call either way.
type fakeTransport struct {
	mu         sync.Mutex
	sessions   map[string]*fakeSession
	creates    int
	appends    []int64
	terminated []string
	appendHook func(call int, offset int64) (accept bool, err error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sessions: make(map[string]*fakeSession)}
}

func (f *fakeTransport) Create(_ context.Context, _ AuthSession, req CreateSessionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	url := fmt.Sprintf("https://api.test/upload/%d", f.creates)
	f.sessions[url] = &fakeSession{size: req.Size, meta: req.Metadata}
	return url, nil
}

func (f *fakeTransport) Offset(_ context.Context, _ AuthSession, url string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[url]
	if !ok {
		return 0, ErrSessionNotFound
	}
	return s.offset, nil
}

func (f *fakeTransport) Append(ctx context.Context, _ AuthSession, url string, offset int64, chunk []byte) (int64, error) {
	f.mu.Lock()
	call := len(f.appends)
	f.appends = append(f.appends, offset)
	hook := f.appendHook
	f.mu.Unlock()

	var hookErr error
	accept := true
	if hook != nil {
		accept, hookErr = hook(call, offset)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[url]
	if !ok {
		return 0, ErrSessionNotFound
	}
	if offset != s.offset {
		return 0, &StatusError{Op: "append", StatusCode: http.StatusConflict}
	}
	if len(chunk) > 0 && chunk[0] != patternByte(offset) {
		return 0, fmt.Errorf("chunk at %d carries wrong bytes", offset)
	}
	if accept {
		s.offset += int64(len(chunk))
	}
	if hookErr != nil {
		return 0, hookErr
	}
	return s.offset, nil
}

func (f *fakeTransport) Terminate(_ context.Context, _ AuthSession, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, url)
	delete(f.sessions, url)
	return nil
}

func (f *fakeTransport) appendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appends)
}

type progressLog struct {
	mu      sync.Mutex
	reports []core.Progress
}

func (l *progressLog) record(p core.Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports = append(l.reports, p)
}

func (l *progressLog) all() []core.Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Progress(nil), l.reports...)
}

type harness struct {
	objects      *fakeObjects
	records      *fakeRecords
	transport    *fakeTransport
	fingerprints *MemoryFingerprintStore
	uploader     *Uploader
}

func newHarness(p core.Policy) *harness {
	h := &harness{
		objects:      newFakeObjects(),
		records:      &fakeRecords{},
		transport:    newFakeTransport(),
		fingerprints: NewMemoryFingerprintStore(),
	}
	h.uploader = New(Options{
		Policy:       p,
		Objects:      h.objects,
		Records:      h.records,
		Transport:    h.transport,
		Fingerprints: h.fingerprints,
		Endpoint:     "https://api.test/upload",
	})
	return h
}
