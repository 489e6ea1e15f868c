package uploader

import (
	"context"
	"sync"
	"time"

	"mediadrop/internal/core"
)

// ProgressFunc receives progress reports. Calls are serialized and Percent
// never decreases within one upload.
type ProgressFunc func(core.Progress)

type progressEmitter struct {
	mu   sync.Mutex
	fn   ProgressFunc
	last core.Progress
}

func newProgressEmitter(path core.UploadPath, total int64, fn ProgressFunc) *progressEmitter {
	return &progressEmitter{
		fn: fn,
		last: core.Progress{
			Path:       path,
			Phase:      core.PhaseTransfer,
			BytesTotal: total,
		},
	}
}

func (e *progressEmitter) emit(p core.Progress) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p.Path = e.last.Path
	p.BytesTotal = e.last.BytesTotal
	if p.Percent < e.last.Percent {
		p.Percent = e.last.Percent
	}
	if p.BytesUploaded < e.last.BytesUploaded {
		p.BytesUploaded = e.last.BytesUploaded
	}
	e.last = p

	if e.fn != nil {
		e.fn(p)
	}
}

// phase moves to a later phase keeping the last byte counts and speed.
func (e *progressEmitter) phase(ph core.Phase, percent float64) {
	e.mu.Lock()
	p := e.last
	e.mu.Unlock()

	p.Phase = ph
	p.Percent = percent
	p.BytesUploaded = p.BytesTotal
	e.emit(p)
}

// simulate fakes transfer progress for a call that reports none. Every tick it
// advances toward the transfer ceiling as if the transfer took budget. The
// returned stop function cancels the simulation and waits for it to exit.
func simulate(ctx context.Context, e *progressEmitter, size int64, tick, budget time.Duration) (stop func()) {
	if tick <= 0 || budget <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	step := core.TransferCeiling * float64(tick) / float64(budget)
	speed := float64(size) / budget.Seconds()

	go func() {
		defer close(done)

		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		percent := 0.0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			percent = min(percent+step, core.TransferCeiling)
			e.emit(core.Progress{
				Phase:          core.PhaseTransfer,
				Percent:        percent,
				BytesUploaded:  int64(float64(size) * percent / core.TransferCeiling),
				BytesPerSecond: speed,
				Estimated:      true,
			})
			if percent >= core.TransferCeiling {
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// transferPercent maps bytes on the server to the transfer share of the bar.
func transferPercent(uploaded, total int64) float64 {
	if total <= 0 {
		return core.TransferCeiling
	}
	return float64(uploaded) / float64(total) * core.TransferCeiling
}
