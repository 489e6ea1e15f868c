package uploader

import (
	"errors"
	"sync"
	"time"

	"mediadrop/internal/core"
)

// ErrBusy is returned by Tracker.Begin while another upload is shown.
var ErrBusy = errors.New("an upload is already in progress")

type State int

const (
	StateIdle State = iota
	StateUploading
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is what a UI renders.
type Snapshot struct {
	State    State
	FileName string
	Progress core.Progress
	Record   *core.MediaFileRecord
	Err      error
}

// Tracker is the upload state machine:
//
//	idle -> uploading -> success -> idle (after the display delay)
//	                  -> error
//	uploading -> idle (cancel)
//
// Every Begin starts a new generation; updates carrying an older generation
// are dropped so a canceled upload cannot overwrite its successor.
type Tracker struct {
	mu         sync.Mutex
	snap       Snapshot
	gen        uint64
	display    time.Duration
	onChange   func(Snapshot)
	onComplete func(core.MediaFileRecord)
}

// NewTracker returns an idle tracker. onComplete fires when the success
// display delay ends. Both callbacks may be nil.
func NewTracker(display time.Duration, onChange func(Snapshot), onComplete func(core.MediaFileRecord)) *Tracker {
	return &Tracker{
		display:    display,
		onChange:   onChange,
		onComplete: onComplete,
	}
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Begin enters uploading from idle or error and returns the generation the
// caller must pass to later transitions.
func (t *Tracker) Begin(fileName string) (uint64, error) {
	t.mu.Lock()
	if t.snap.State != StateIdle && t.snap.State != StateError {
		t.mu.Unlock()
		return 0, ErrBusy
	}
	t.gen++
	t.snap = Snapshot{State: StateUploading, FileName: fileName}
	gen, snap := t.gen, t.snap
	t.mu.Unlock()

	t.changed(snap)
	return gen, nil
}

func (t *Tracker) Update(gen uint64, p core.Progress) {
	t.mu.Lock()
	if gen != t.gen || t.snap.State != StateUploading {
		t.mu.Unlock()
		return
	}
	t.snap.Progress = p
	snap := t.snap
	t.mu.Unlock()

	t.changed(snap)
}

// Succeed shows success, then returns to idle and fires the completion
// callback once the display delay has passed.
func (t *Tracker) Succeed(gen uint64, rec core.MediaFileRecord) {
	t.mu.Lock()
	if gen != t.gen || t.snap.State != StateUploading {
		t.mu.Unlock()
		return
	}
	t.snap.State = StateSuccess
	t.snap.Record = &rec
	snap := t.snap
	t.mu.Unlock()

	t.changed(snap)

	time.AfterFunc(t.display, func() {
		t.mu.Lock()
		if gen != t.gen || t.snap.State != StateSuccess {
			t.mu.Unlock()
			return
		}
		t.snap = Snapshot{State: StateIdle}
		snap := t.snap
		t.mu.Unlock()

		t.changed(snap)
		if t.onComplete != nil {
			t.onComplete(rec)
		}
	})
}

// Fail records err. The error state stays until the next Begin.
func (t *Tracker) Fail(gen uint64, err error) {
	t.mu.Lock()
	if gen != t.gen || t.snap.State != StateUploading {
		t.mu.Unlock()
		return
	}
	t.snap.State = StateError
	t.snap.Err = err
	snap := t.snap
	t.mu.Unlock()

	t.changed(snap)
}

// Cancel returns to idle from uploading, discarding progress. It reports
// whether there was anything to cancel.
func (t *Tracker) Cancel() bool {
	t.mu.Lock()
	if t.snap.State != StateUploading {
		t.mu.Unlock()
		return false
	}
	t.gen++
	t.snap = Snapshot{State: StateIdle}
	snap := t.snap
	t.mu.Unlock()

	t.changed(snap)
	return true
}

func (t *Tracker) changed(s Snapshot) {
	if t.onChange != nil {
		t.onChange(s)
	}
}
