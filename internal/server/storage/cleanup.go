package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"mediadrop/internal/server/database"
)

// ExpiredSessions is the part of the session repository the sweeper needs.
type ExpiredSessions interface {
	GetExpired(ctx context.Context) ([]*database.UploadSession, error)
	Delete(ctx context.Context, id string) error
}

// CleanupService periodically removes resumable sessions nobody finished,
// along with their spooled bytes.
type CleanupService struct {
	sessions ExpiredSessions
	partials *Partials
	interval time.Duration
	done     chan struct{}
}

func NewCleanupService(sessions ExpiredSessions, partials *Partials, interval time.Duration) *CleanupService {
	return &CleanupService{
		sessions: sessions,
		partials: partials,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the cleanup loop in a background goroutine.
func (cs *CleanupService) Start(ctx context.Context) {
	slog.Info("cleanup service started", "interval", cs.interval)

	go func() {
		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()

		// sweep once before the first tick
		cs.runCleanup(ctx)

		for {
			select {
			case <-ticker.C:
				cs.runCleanup(ctx)
			case <-ctx.Done():
				slog.Info("cleanup service stopping")
				close(cs.done)
				return
			}
		}
	}()
}

// Wait blocks until the cleanup service has fully stopped.
func (cs *CleanupService) Wait() {
	<-cs.done
}

func (cs *CleanupService) runCleanup(ctx context.Context) (cleaned, failed int) {
	expired, err := cs.sessions.GetExpired(ctx)
	if err != nil {
		slog.Error("failed to get expired upload sessions", "error", err)
		return 0, 0
	}

	if len(expired) == 0 {
		slog.Debug("no expired upload sessions")
		return 0, 0
	}

	for _, session := range expired {
		if err := cs.partials.Remove(session.ID); err != nil {
			slog.Error("failed to delete partial upload",
				"upload_id", session.ID,
				"error", err,
			)
			failed++
			continue
		}

		if err := cs.sessions.Delete(ctx, session.ID); err != nil && !errors.Is(err, database.ErrNotFound) {
			slog.Error("failed to delete upload session",
				"upload_id", session.ID,
				"error", err,
			)
			failed++
			continue
		}

		cleaned++
		slog.Info("cleaned up expired upload session",
			"upload_id", session.ID,
			"key", session.ObjectKey,
			"received_bytes", session.Offset,
			"expired_at", session.ExpiresAt,
		)
	}

	slog.Info("cleanup cycle complete",
		"cleaned", cleaned,
		"failed", failed,
		"total_expired", len(expired),
	)
	return cleaned, failed
}
