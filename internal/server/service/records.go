package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"mediadrop/internal/core"
	"mediadrop/internal/server/database"
	"mediadrop/internal/server/events"
)

const maxListLimit = 200

// CreateRecord inserts the media record for an object the caller already
// stored. A record is never written for bytes that are not there.
func (s *UploadService) CreateRecord(ctx context.Context, userID string, in core.MediaFileRecord) (*database.MediaFile, error) {
	if in.UserID == "" {
		in.UserID = userID
	}
	if in.UserID != userID {
		return nil, ErrForbidden
	}
	if in.FileType != core.KindVideo && in.FileType != core.KindAudio {
		return nil, fmt.Errorf("%w: file_type must be video or audio", ErrInvalidRequest)
	}
	if in.FileName == "" || in.FileSize < 0 {
		return nil, fmt.Errorf("%w: file_name and file_size are required", ErrInvalidRequest)
	}
	if in.Source == "" {
		in.Source = core.SourceUpload
	}

	bucket, key, err := objectFromURL(in.FileURL)
	if err != nil {
		return nil, err
	}
	if err := s.checkBucket(bucket); err != nil {
		return nil, err
	}
	if err := checkOwner(userID, key); err != nil {
		return nil, err
	}

	found, err := s.exists(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrObjectMissing
	}

	rec := &database.MediaFile{
		ID:        uuid.NewString(),
		UserID:    userID,
		FileName:  in.FileName,
		FileURL:   in.FileURL,
		FileType:  string(in.FileType),
		FileSize:  in.FileSize,
		Source:    in.Source,
		Bucket:    bucket,
		ObjectKey: key,
		CreatedAt: s.now().UTC(),
	}

	err = s.files.Create(ctx, rec)
	s.observer.RecordWritten(err)
	if err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to create media record: %w", err)
	}

	evt := events.MediaUploaded{
		RecordID:  rec.ID,
		UserID:    rec.UserID,
		FileName:  rec.FileName,
		FileURL:   rec.FileURL,
		FileType:  rec.FileType,
		FileSize:  rec.FileSize,
		Bucket:    rec.Bucket,
		ObjectKey: rec.ObjectKey,
		CreatedAt: rec.CreatedAt,
	}
	if err := s.events.PublishMediaUploaded(ctx, evt); err != nil {
		slog.Error("failed to publish media event", "id", rec.ID, "error", err)
	}

	slog.Info("media record created",
		"id", rec.ID,
		"user_id", rec.UserID,
		"key", rec.ObjectKey,
		"file_type", rec.FileType,
	)
	return rec, nil
}

func (s *UploadService) ListRecords(ctx context.Context, userID string, limit int) ([]*database.MediaFile, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	return s.files.ListByUser(ctx, userID, limit)
}

// DeleteRecord removes a record owned by userID. The object stays.
func (s *UploadService) DeleteRecord(ctx context.Context, userID, id string) error {
	rec, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if rec.UserID != userID {
		return ErrNotFound
	}

	if err := s.files.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete media record: %w", err)
	}

	slog.Info("media record deleted", "id", id, "key", rec.ObjectKey)
	return nil
}

// objectFromURL recovers bucket and key from a public object URL, either
// {base}/storage/v1/object/public/{bucket}/{key} or a path style
// {endpoint}/{bucket}/{key} URL.
func objectFromURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "", "", fmt.Errorf("%w: bad file_url %q", ErrInvalidRequest, raw)
	}

	p := u.Path
	if i := strings.Index(p, "/object/public/"); i >= 0 {
		p = p[i+len("/object/public/"):]
	}
	p = strings.TrimPrefix(p, "/")

	bucket, key, ok := strings.Cut(p, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: file_url %q does not name an object", ErrInvalidRequest, raw)
	}
	return bucket, key, nil
}

// ToRecord converts a stored row to its wire form.
func ToRecord(f *database.MediaFile) core.MediaFileRecord {
	return core.MediaFileRecord{
		ID:        f.ID,
		UserID:    f.UserID,
		FileName:  f.FileName,
		FileURL:   f.FileURL,
		FileType:  core.MediaKind(f.FileType),
		FileSize:  f.FileSize,
		Source:    f.Source,
		CreatedAt: f.CreatedAt,
	}
}
