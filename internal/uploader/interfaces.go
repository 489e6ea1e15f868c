package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"mediadrop/internal/core"
)

// ErrNoSession is returned by a SessionProvider when nobody is signed in.
var ErrNoSession = errors.New("no active session")

// ErrSessionNotFound is returned by a ResumableTransport when the server no
// longer knows an upload session.
var ErrSessionNotFound = errors.New("upload session not found")

// AuthSession is the signed-in principal. It is passed explicitly into every
// path instead of being looked up ad hoc.
type AuthSession struct {
	UserID      string
	AccessToken string
	ExpiresAt   time.Time
}

type SessionProvider interface {
	Session(ctx context.Context) (*AuthSession, error)
}

// SessionProviderFunc adapts a function to SessionProvider.
type SessionProviderFunc func(ctx context.Context) (*AuthSession, error)

func (f SessionProviderFunc) Session(ctx context.Context) (*AuthSession, error) {
	return f(ctx)
}

type PutOptions struct {
	ContentType  string
	CacheControl string
	// Upsert false makes Put fail when the key already exists.
	Upsert bool
}

// ObjectStore is the object storage used by the direct path and for
// resolving public URLs.
type ObjectStore interface {
	Put(ctx context.Context, auth AuthSession, bucket, key string, body io.Reader, size int64, opts PutOptions) error
	PublicURL(bucket, key string) string
	Remove(ctx context.Context, auth AuthSession, bucket, key string) error
}

// SessionMetadata travels with a resumable session and tells the server where
// the finished object goes.
type SessionMetadata struct {
	Bucket       string
	ObjectName   string
	ContentType  string
	CacheControl string
}

type CreateSessionRequest struct {
	Size     int64
	Metadata SessionMetadata
	Upsert   bool
}

// ResumableTransport speaks the resumable upload protocol.
type ResumableTransport interface {
	// Create opens a session and returns its URL.
	Create(ctx context.Context, auth AuthSession, req CreateSessionRequest) (string, error)
	// Offset reports how many bytes the server holds for a session.
	Offset(ctx context.Context, auth AuthSession, sessionURL string) (int64, error)
	// Append sends chunk at offset and returns the new server offset.
	Append(ctx context.Context, auth AuthSession, sessionURL string, offset int64, chunk []byte) (int64, error)
	// Terminate deletes the session and its partial bytes.
	Terminate(ctx context.Context, auth AuthSession, sessionURL string) error
}

// RecordStore is the metadata table.
type RecordStore interface {
	Insert(ctx context.Context, auth AuthSession, rec core.MediaFileRecord) (core.MediaFileRecord, error)
	Delete(ctx context.Context, auth AuthSession, id string) error
}

// StatusError is an unexpected HTTP status from a collaborator.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Message)
}
