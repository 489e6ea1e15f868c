package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"

	"mediadrop/internal/core"
)

// Controller ties one upload slot to a tracker and a notifier: it validates
// the file, fetches the session, runs the upload and reports the outcome.
type Controller struct {
	uploader *Uploader
	sessions SessionProvider
	notifier Notifier
	tracker  *Tracker

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewController creates a controller. A nil notifier logs notifications.
func NewController(u *Uploader, sessions SessionProvider, notifier Notifier, tracker *Tracker) *Controller {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Controller{
		uploader: u,
		sessions: sessions,
		notifier: notifier,
		tracker:  tracker,
	}
}

func (c *Controller) Tracker() *Tracker {
	return c.tracker
}

// Submit uploads file. Validation failures are only notified; they never
// enter the uploading state.
func (c *Controller) Submit(ctx context.Context, file core.MediaFile, content io.ReaderAt) (*Result, error) {
	if err := core.Validate(file, c.uploader.Policy()); err != nil {
		c.notifier.Notify(rejection(err))
		return nil, err
	}

	gen, err := c.tracker.Begin(file.Name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}()

	auth, err := c.sessions.Session(ctx)
	if err == nil && (auth == nil || auth.UserID == "") {
		err = ErrNoSession
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", core.ErrNotAuthenticated, err)
		c.fail(gen, err)
		return nil, err
	}

	res, err := c.uploader.upload(ctx, *auth, file, content, func(p core.Progress) {
		c.tracker.Update(gen, p)
	})
	if err != nil {
		if errors.Is(err, core.ErrCanceled) {
			c.tracker.Cancel()
			c.notifier.Notify(Notification{
				Title:       "Upload canceled",
				Description: file.Name,
				Variant:     VariantDefault,
			})
			return nil, err
		}
		c.fail(gen, err)
		return nil, err
	}

	c.tracker.Succeed(gen, res.Record)
	c.notifier.Notify(Notification{
		Title:       "Upload complete",
		Description: fmt.Sprintf("%s (%s) uploaded", file.Name, humanize.IBytes(uint64(file.Size))),
		Variant:     VariantSuccess,
	})
	return res, nil
}

// Cancel aborts the running upload. It reports whether one was running.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return false
	}
	ok := c.tracker.Cancel()
	c.cancel()
	return ok
}

func (c *Controller) fail(gen uint64, err error) {
	c.tracker.Fail(gen, err)
	c.notifier.Notify(Notification{
		Title:       "Upload failed",
		Description: err.Error(),
		Variant:     VariantDestructive,
	})
}

func rejection(err error) Notification {
	n := Notification{Description: err.Error(), Variant: VariantDestructive}
	switch {
	case errors.Is(err, core.ErrUnsupportedType):
		n.Title = "Invalid file type"
	case errors.Is(err, core.ErrKindNotAccepted):
		n.Title = "File type not accepted"
	case errors.Is(err, core.ErrFileTooLarge):
		n.Title = "File too large"
	default:
		n.Title = "Invalid file"
	}
	return n
}
