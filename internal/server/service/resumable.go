package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"mediadrop/internal/server/database"
	"mediadrop/internal/server/storage"
)

type CreateSessionInput struct {
	Length       int64
	Bucket       string
	ObjectKey    string
	ContentType  string
	CacheControl string
	Upsert       bool
}

// CreateSession opens a resumable upload. Its bytes are spooled until the
// last chunk arrives and then written to the object store in one piece.
func (s *UploadService) CreateSession(ctx context.Context, userID string, in CreateSessionInput) (*database.UploadSession, error) {
	if err := s.checkBucket(in.Bucket); err != nil {
		return nil, err
	}
	if err := storage.ValidateKey(in.Bucket, in.ObjectKey); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := checkOwner(userID, in.ObjectKey); err != nil {
		return nil, err
	}
	if in.Length <= 0 {
		return nil, fmt.Errorf("%w: upload length must be positive", ErrInvalidRequest)
	}
	if in.Length > s.cfg.MaxFileSize {
		return nil, ErrFileTooLarge
	}

	if !in.Upsert {
		found, err := s.exists(ctx, in.Bucket, in.ObjectKey)
		if err != nil {
			return nil, err
		}
		if found {
			return nil, ErrObjectExists
		}
	}

	now := s.now().UTC()
	session := &database.UploadSession{
		ID:           uuid.NewString(),
		UserID:       userID,
		Bucket:       in.Bucket,
		ObjectKey:    in.ObjectKey,
		ContentType:  in.ContentType,
		CacheControl: in.CacheControl,
		Upsert:       in.Upsert,
		Length:       in.Length,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.SessionExpiry),
	}

	if err := s.partials.Create(session.ID); err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		if rerr := s.partials.Remove(session.ID); rerr != nil {
			slog.Error("failed to remove partial upload", "upload_id", session.ID, "error", rerr)
		}
		return nil, err
	}

	slog.Info("upload session created",
		"upload_id", session.ID,
		"key", session.ObjectKey,
		"length", session.Length,
	)
	return session, nil
}

// GetSession returns a live session owned by userID.
func (s *UploadService) GetSession(ctx context.Context, userID, id string) (*database.UploadSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrNotFound
	}
	if s.now().After(session.ExpiresAt) {
		return nil, ErrExpired
	}
	return session, nil
}

// AppendChunk writes the bytes of r at offset, which must equal the stored
// offset, and returns the new offset. Whatever arrived before a broken
// connection is kept. Reaching the declared length completes the upload; an
// empty append at that length retries a completion that failed.
func (s *UploadService) AppendChunk(ctx context.Context, userID, id string, offset int64, r io.Reader) (int64, error) {
	unlock := s.locks.Lock("session/" + id)
	defer unlock()

	session, err := s.GetSession(ctx, userID, id)
	if err != nil {
		return 0, err
	}
	if offset != session.Offset {
		return session.Offset, ErrOffsetMismatch
	}

	written, werr := s.partials.Append(id, offset, r, session.Length-offset)
	if written > 0 {
		if err := s.sessions.UpdateOffset(ctx, id, offset, offset+written); err != nil {
			if errors.Is(err, database.ErrOffsetMismatch) {
				return offset, ErrOffsetMismatch
			}
			return offset, err
		}
		session.Offset = offset + written
	}
	if werr != nil {
		slog.Warn("chunk interrupted",
			"upload_id", id,
			"offset", offset,
			"received", written,
			"error", werr,
		)
		return session.Offset, fmt.Errorf("failed to receive chunk: %w", werr)
	}

	if session.Offset == session.Length {
		if err := s.completeSession(ctx, session); err != nil {
			return session.Offset, err
		}
	}
	return session.Offset, nil
}

// completeSession writes the spooled bytes to the store. It holds the object
// lock so a direct PUT to the same key cannot slip past the exists check.
// A failure leaves the session at its full length and the next append at that
// offset tries again.
func (s *UploadService) completeSession(ctx context.Context, session *database.UploadSession) error {
	unlock := s.locks.Lock(session.Bucket + "/" + session.ObjectKey)
	defer unlock()

	if !session.Upsert {
		found, err := s.exists(ctx, session.Bucket, session.ObjectKey)
		if err != nil {
			return err
		}
		if found {
			s.observer.SessionFinished("conflict")
			return ErrObjectExists
		}
	}

	f, err := s.partials.Open(session.ID)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := s.store.Put(ctx, session.Bucket, session.ObjectKey, f, session.Length, storage.ObjectMeta{
		ContentType:  session.ContentType,
		CacheControl: session.CacheControl,
	})
	if err != nil {
		s.observer.SessionFinished("failed")
		return fmt.Errorf("failed to assemble upload %s: %w", session.ID, err)
	}

	if err := s.partials.Remove(session.ID); err != nil {
		slog.Error("failed to remove partial upload", "upload_id", session.ID, "error", err)
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, database.ErrNotFound) {
		slog.Error("failed to delete completed session", "upload_id", session.ID, "error", err)
	}

	s.observer.ObjectStored("resumable", n)
	s.observer.SessionFinished("completed")
	slog.Info("resumable upload completed",
		"upload_id", session.ID,
		"key", session.ObjectKey,
		"size", n,
	)
	return nil
}

// TerminateSession abandons an upload and discards its bytes.
func (s *UploadService) TerminateSession(ctx context.Context, userID, id string) error {
	unlock := s.locks.Lock("session/" + id)
	defer unlock()

	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if session.UserID != userID {
		return ErrNotFound
	}

	if err := s.partials.Remove(id); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, id); err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}

	s.observer.SessionFinished("terminated")
	slog.Info("upload session terminated", "upload_id", id, "received_bytes", session.Offset)
	return nil
}
