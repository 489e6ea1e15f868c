package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a record for the same object already exists.
	ErrDuplicate = errors.New("duplicate record")
	// ErrOffsetMismatch is returned when a session moved on since it was read.
	ErrOffsetMismatch = errors.New("upload offset changed")
)

const mediaFileColumns = `id, user_id, file_name, file_url, file_type, file_size, source, bucket, object_key, created_at`

// MediaFileRepository provides CRUD operations for media_files.
type MediaFileRepository struct {
	db *DB
}

func NewMediaFileRepository(db *DB) *MediaFileRepository {
	return &MediaFileRepository{db: db}
}

func (r *MediaFileRepository) Create(ctx context.Context, f *MediaFile) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO media_files (`+mediaFileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		f.ID,
		f.UserID,
		f.FileName,
		f.FileURL,
		f.FileType,
		f.FileSize,
		f.Source,
		f.Bucket,
		f.ObjectKey,
		f.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create media file: %w", err)
	}
	return nil
}

func (r *MediaFileRepository) GetByID(ctx context.Context, id string) (*MediaFile, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+mediaFileColumns+` FROM media_files WHERE id = $1`, id)
	f, err := scanMediaFile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get media file: %w", err)
	}
	return f, nil
}

// ListByUser returns the newest files of a user first.
func (r *MediaFileRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*MediaFile, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+mediaFileColumns+`
		FROM media_files WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list media files: %w", err)
	}
	defer rows.Close()

	var files []*MediaFile
	for rows.Next() {
		f, err := scanMediaFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (r *MediaFileRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM media_files WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete media file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMediaFile(row pgx.Row) (*MediaFile, error) {
	f := &MediaFile{}
	err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.FileName,
		&f.FileURL,
		&f.FileType,
		&f.FileSize,
		&f.Source,
		&f.Bucket,
		&f.ObjectKey,
		&f.CreatedAt,
	)
	return f, err
}

const sessionColumns = `id, user_id, bucket, object_key, content_type, cache_control, upsert, length, upload_offset, created_at, updated_at, expires_at`

// SessionRepository stores resumable upload sessions.
type SessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *UploadSession) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO upload_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		s.ID,
		s.UserID,
		s.Bucket,
		s.ObjectKey,
		s.ContentType,
		s.CacheControl,
		s.Upsert,
		s.Length,
		s.Offset,
		s.CreatedAt,
		s.UpdatedAt,
		s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create upload session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*UploadSession, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM upload_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get upload session: %w", err)
	}
	return s, nil
}

// UpdateOffset moves a session from one offset to another. It fails with
// ErrOffsetMismatch when the stored offset is no longer from.
func (r *SessionRepository) UpdateOffset(ctx context.Context, id string, from, to int64) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE upload_sessions
		SET upload_offset = $3, updated_at = NOW()
		WHERE id = $1 AND upload_offset = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update upload offset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrOffsetMismatch
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM upload_sessions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete upload session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetExpired returns all sessions whose expiration time has passed.
func (r *SessionRepository) GetExpired(ctx context.Context) ([]*UploadSession, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+sessionColumns+` FROM upload_sessions WHERE expires_at < NOW()`)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*UploadSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (*UploadSession, error) {
	s := &UploadSession{}
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Bucket,
		&s.ObjectKey,
		&s.ContentType,
		&s.CacheControl,
		&s.Upsert,
		&s.Length,
		&s.Offset,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.ExpiresAt,
	)
	return s, err
}
