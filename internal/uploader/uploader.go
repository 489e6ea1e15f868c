package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"mediadrop/internal/core"
)

const cleanupTimeout = 30 * time.Second

// Options wires an Uploader to its collaborators. A nil Fingerprints keeps
// resumable sessions in memory and a nil Now uses the wall clock.
type Options struct {
	Policy       core.Policy
	Objects      ObjectStore
	Records      RecordStore
	Transport    ResumableTransport
	Fingerprints FingerprintStore
	// Endpoint is the resumable endpoint, part of every fingerprint.
	Endpoint string
	Now      func() time.Time
}

// Uploader moves one media file into storage and writes its record. It
// validates, picks the direct or resumable path by size and reports progress.
type Uploader struct {
	policy       core.Policy
	objects      ObjectStore
	records      RecordStore
	transport    ResumableTransport
	fingerprints FingerprintStore
	endpoint     string
	now          func() time.Time
}

// Result describes a finished upload.
type Result struct {
	Record  core.MediaFileRecord
	Path    core.UploadPath
	Key     string
	Resumed bool
}

// New creates an uploader from opts.
func New(opts Options) *Uploader {
	u := &Uploader{
		policy:       opts.Policy,
		objects:      opts.Objects,
		records:      opts.Records,
		transport:    opts.Transport,
		fingerprints: opts.Fingerprints,
		endpoint:     opts.Endpoint,
		now:          opts.Now,
	}
	if u.fingerprints == nil {
		u.fingerprints = NewMemoryFingerprintStore()
	}
	if u.now == nil {
		u.now = time.Now
	}
	return u
}

// Policy returns the limits and timings the uploader runs with.
func (u *Uploader) Policy() core.Policy {
	return u.policy
}

// Upload transfers content, which must hold file.Size bytes, and inserts one
// record once the bytes are stored.
func (u *Uploader) Upload(ctx context.Context, auth AuthSession, file core.MediaFile, content io.ReaderAt, onProgress ProgressFunc) (*Result, error) {
	if err := core.Validate(file, u.policy); err != nil {
		return nil, err
	}
	return u.upload(ctx, auth, file, content, onProgress)
}

// upload is Upload for a file that already passed validation.
func (u *Uploader) upload(ctx context.Context, auth AuthSession, file core.MediaFile, content io.ReaderAt, onProgress ProgressFunc) (*Result, error) {
	req, err := core.NewUploadRequest(file, auth.UserID, u.now())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrCanceled, err)
	}

	path := core.SelectPath(file.Size, u.policy)
	emit := newProgressEmitter(path, file.Size, onProgress)

	slog.Debug("starting upload",
		"file", file.Name,
		"size", file.Size,
		"path", path.String(),
		"key", req.DestinationKey,
	)

	if path == core.PathResumable {
		return u.uploadResumable(ctx, auth, req, content, emit)
	}
	return u.uploadDirect(ctx, auth, req, content, emit)
}

func (u *Uploader) uploadDirect(ctx context.Context, auth AuthSession, req *core.UploadRequest, content io.ReaderAt, emit *progressEmitter) (*Result, error) {
	stop := simulate(ctx, emit, req.File.Size, u.policy.ProgressTick, u.policy.SimulatedBudget)

	body := io.NewSectionReader(content, 0, req.File.Size)
	err := u.objects.Put(ctx, auth, u.policy.Bucket, req.DestinationKey, body, req.File.Size, PutOptions{
		ContentType:  req.File.MIMEType,
		CacheControl: u.policy.CacheControl,
		Upsert:       false,
	})
	stop()
	if err != nil {
		return nil, classify(ctx, core.ErrStorage, err)
	}

	rec, err := u.finalize(ctx, auth, req, emit)
	if err != nil {
		return nil, err
	}
	return &Result{Record: rec, Path: core.PathDirect, Key: req.DestinationKey}, nil
}

func (u *Uploader) uploadResumable(ctx context.Context, auth AuthSession, req *core.UploadRequest, content io.ReaderAt, emit *progressEmitter) (*Result, error) {
	fp := Fingerprint(req.File, req.OwnerID, u.endpoint)

	session, offset, resumed, err := u.openSession(ctx, auth, req, fp)
	if err != nil {
		return nil, classify(ctx, transferClass(err), err)
	}
	// A resumed session already names its object.
	req.DestinationKey = session.ObjectKey

	if err := u.transfer(ctx, auth, req, session.URL, offset, content, emit); err != nil {
		if ctx.Err() != nil {
			u.abandon(ctx, auth, fp, session.URL)
		}
		return nil, classify(ctx, transferClass(err), err)
	}

	if err := u.fingerprints.Remove(ctx, fp); err != nil {
		slog.Warn("failed to clear resume fingerprint", "fingerprint", fp, "error", err)
	}

	rec, err := u.finalize(ctx, auth, req, emit)
	if err != nil {
		return nil, err
	}
	return &Result{Record: rec, Path: core.PathResumable, Key: req.DestinationKey, Resumed: resumed}, nil
}

// openSession resumes the newest remembered session the server still holds,
// or creates a new one.
func (u *Uploader) openSession(ctx context.Context, auth AuthSession, req *core.UploadRequest, fp string) (StoredSession, int64, bool, error) {
	previous, err := u.fingerprints.Find(ctx, fp)
	if err != nil {
		slog.Warn("failed to look up previous uploads", "fingerprint", fp, "error", err)
	}

	for _, s := range previous {
		if s.Size != req.File.Size || !strings.HasPrefix(s.ObjectKey, req.OwnerID+"/") {
			continue
		}

		offset, err := u.transport.Offset(ctx, auth, s.URL)
		if err != nil {
			if ctx.Err() != nil {
				return StoredSession{}, 0, false, err
			}
			slog.Debug("previous upload not resumable", "url", s.URL, "error", err)
			continue
		}
		if offset < 0 || offset > req.File.Size {
			continue
		}

		slog.Info("resuming upload", "file", req.File.Name, "url", s.URL, "offset", offset)
		return s, offset, true, nil
	}

	if len(previous) > 0 {
		if err := u.fingerprints.Remove(ctx, fp); err != nil {
			slog.Warn("failed to clear stale fingerprint", "fingerprint", fp, "error", err)
		}
	}

	create := CreateSessionRequest{
		Size: req.File.Size,
		Metadata: SessionMetadata{
			Bucket:       u.policy.Bucket,
			ObjectName:   req.DestinationKey,
			ContentType:  req.File.MIMEType,
			CacheControl: u.policy.CacheControl,
		},
		Upsert: true,
	}
	url, err := retryTransient(ctx, u.policy.RetryDelays, "create session", func() (string, error) {
		return u.transport.Create(ctx, auth, create)
	})
	if err != nil {
		return StoredSession{}, 0, false, err
	}

	session := StoredSession{
		URL:       url,
		Size:      req.File.Size,
		ObjectKey: req.DestinationKey,
		CreatedAt: u.now(),
	}
	if err := u.fingerprints.Save(ctx, fp, session); err != nil {
		slog.Warn("failed to remember upload session", "fingerprint", fp, "error", err)
	}
	return session, 0, false, nil
}

// transfer sends content from offset in sequential chunks. Each chunk gets the
// full retry schedule; after a failed append the offset is re-read from the
// server so bytes that landed are not sent twice. An offset of total learned
// that way only proves the bytes arrived, so completion is confirmed with an
// empty append before the transfer counts as done.
func (u *Uploader) transfer(ctx context.Context, auth AuthSession, req *core.UploadRequest, url string, offset int64, content io.ReaderAt, emit *progressEmitter) error {
	total := req.File.Size
	chunkSize := u.policy.ChunkSizeBytes
	if chunkSize <= 0 {
		chunkSize = 5 * core.MiB
	}

	started := u.now()
	startOffset := offset
	report := func() {
		p := core.Progress{
			Phase:         core.PhaseTransfer,
			Percent:       transferPercent(offset, total),
			BytesUploaded: offset,
		}
		if elapsed := u.now().Sub(started).Seconds(); elapsed > 0 {
			p.BytesPerSecond = float64(offset-startOffset) / elapsed
		}
		emit.emit(p)
	}
	if offset > 0 {
		report()
	}

	confirmed := false
	buf := make([]byte, chunkSize)
	for offset < total {
		end := min(offset+chunkSize, total)
		chunk := buf[:end-offset]
		if n, err := content.ReadAt(chunk, offset); n < len(chunk) {
			return fmt.Errorf("failed to read %s at offset %d: %w", req.File.Name, offset, err)
		}

		base := offset
		at := offset
		next, err := retryTransient(ctx, u.policy.RetryDelays, "append chunk", func() (int64, error) {
			got, err := u.transport.Append(ctx, auth, url, at, chunk[at-base:])
			if err == nil {
				confirmed = got == total
				return got, nil
			}
			if !IsTransient(err) || ctx.Err() != nil {
				return 0, err
			}

			server, oerr := u.transport.Offset(ctx, auth, url)
			if oerr != nil {
				return 0, err
			}
			switch {
			case server < base || server > end:
				return 0, permanent(fmt.Errorf("server offset %d outside chunk [%d, %d]", server, base, end))
			case server == end:
				return server, nil
			}
			at = server
			return 0, err
		})
		if err != nil {
			return err
		}
		if next <= base || next > total {
			return fmt.Errorf("server acknowledged offset %d after sending from %d", next, base)
		}

		offset = next
		report()
	}

	if confirmed {
		return nil
	}
	return u.confirm(ctx, auth, url, total)
}

// confirm sends an empty append at total so the server finishes a session
// whose bytes all arrived but whose completion was never acknowledged.
func (u *Uploader) confirm(ctx context.Context, auth AuthSession, url string, total int64) error {
	got, err := retryTransient(ctx, u.policy.RetryDelays, "complete upload", func() (int64, error) {
		return u.transport.Append(ctx, auth, url, total, nil)
	})
	if err != nil {
		return err
	}
	if got != total {
		return fmt.Errorf("server acknowledged offset %d on completing %d bytes", got, total)
	}
	return nil
}

// finalize writes the record once the bytes are stored. When the insert fails
// the stored object would be orphaned, so it is removed.
func (u *Uploader) finalize(ctx context.Context, auth AuthSession, req *core.UploadRequest, emit *progressEmitter) (core.MediaFileRecord, error) {
	emit.phase(core.PhaseFinalize, core.FinalizePercent)

	url := u.objects.PublicURL(u.policy.Bucket, req.DestinationKey)
	rec, err := u.records.Insert(ctx, auth, core.NewRecord(req, url))
	if err != nil {
		return core.MediaFileRecord{}, u.compensate(ctx, auth, req, err)
	}

	emit.phase(core.PhaseDone, core.DonePercent)
	return rec, nil
}

func (u *Uploader) compensate(ctx context.Context, auth AuthSession, req *core.UploadRequest, cause error) error {
	class := core.ErrDatabase
	if ctx.Err() != nil {
		class = core.ErrCanceled
	}

	if !u.policy.CompensateOrphans {
		slog.Error("record insert failed, object left in storage",
			"key", req.DestinationKey,
			"error", cause,
		)
		return fmt.Errorf("%w: %w: %w", class, core.ErrOrphanedObject, cause)
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := u.objects.Remove(cctx, auth, u.policy.Bucket, req.DestinationKey); err != nil {
		slog.Error("failed to remove object after record insert failed",
			"key", req.DestinationKey,
			"error", err,
			"insert_error", cause,
		)
		return fmt.Errorf("%w: %w: %w", class, core.ErrOrphanedObject, cause)
	}

	slog.Info("removed object after record insert failed", "key", req.DestinationKey)
	return fmt.Errorf("%w: %w", class, cause)
}

// abandon terminates a canceled resumable session and forgets it.
func (u *Uploader) abandon(ctx context.Context, auth AuthSession, fp, url string) {
	if !u.policy.TerminateOnCancel {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := u.transport.Terminate(cctx, auth, url); err != nil && !errors.Is(err, ErrSessionNotFound) {
		slog.Warn("failed to terminate upload session", "url", url, "error", err)
	}
	if err := u.fingerprints.Remove(cctx, fp); err != nil {
		slog.Warn("failed to clear resume fingerprint", "fingerprint", fp, "error", err)
	}
}

// transferClass separates rejected requests from an unreachable server.
func transferClass(err error) error {
	var se *StatusError
	if errors.As(err, &se) && !IsTransient(se) {
		return core.ErrStorage
	}
	return core.ErrNetwork
}

func classify(ctx context.Context, class, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", core.ErrCanceled, err)
	}
	return fmt.Errorf("%w: %w", class, err)
}
