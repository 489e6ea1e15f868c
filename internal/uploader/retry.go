package uploader

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// ScheduleBackOff waits a fixed list of delays, one per retry, then stops.
type ScheduleBackOff struct {
	delays []time.Duration
	next   int
}

func NewScheduleBackOff(delays []time.Duration) *ScheduleBackOff {
	return &ScheduleBackOff{delays: delays}
}

func (b *ScheduleBackOff) NextBackOff() time.Duration {
	if b.next >= len(b.delays) {
		return backoff.Stop
	}
	d := b.delays[b.next]
	b.next++
	return d
}

func (b *ScheduleBackOff) Reset() {
	b.next = 0
}

var _ backoff.BackOff = (*ScheduleBackOff)(nil)

// IsTransient reports whether a failed call is worth retrying. Status errors
// are retried on conflicts, locks, throttling and server errors; anything
// below the HTTP layer is treated as a network blip.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrSessionNotFound) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusConflict,
			se.StatusCode == http.StatusLocked,
			se.StatusCode == http.StatusTooManyRequests,
			se.StatusCode >= 500:
			return true
		default:
			return false
		}
	}

	var perm *backoff.PermanentError
	return !errors.As(err, &perm)
}

// retryTransient runs op until it succeeds, fails permanently, or the delay
// schedule runs out.
func retryTransient[T any](ctx context.Context, delays []time.Duration, what string, op func() (T, error)) (T, error) {
	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		res, err := op()
		if err == nil || IsTransient(err) {
			return res, err
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return res, err
		}
		return res, backoff.Permanent(err)
	}

	notify := func(err error, next time.Duration) {
		slog.Warn("transient upload failure, retrying",
			"operation", what,
			"attempt", attempt,
			"delay", next,
			"error", err,
		)
	}

	b := backoff.WithContext(NewScheduleBackOff(delays), ctx)
	return backoff.RetryNotifyWithData(wrapped, b, notify)
}

func permanent(err error) error {
	return backoff.Permanent(err)
}
