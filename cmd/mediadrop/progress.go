package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"mediadrop/internal/uploader"
)

// progressBoard prints upload progress. A single upload on a terminal gets a
// live line; otherwise each file reports every quarter.
type progressBoard struct {
	mu    sync.Mutex
	out   io.Writer
	live  bool
	width int
	last  map[string]int
}

func newProgressBoard(out io.Writer, single bool) *progressBoard {
	b := &progressBoard{out: out, last: make(map[string]int), width: 100}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b.live = single
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 {
			b.width = w
		}
	}
	return b
}

func (b *progressBoard) update(s uploader.Snapshot) {
	if s.State != uploader.StateUploading {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	line := formatProgress(s)
	if b.live {
		if len(line) > b.width-1 {
			line = line[:b.width-1]
		}
		fmt.Fprintf(b.out, "\r\033[K%s", line)
		return
	}

	step := int(s.Progress.Percent) / 25
	if prev, ok := b.last[s.FileName]; ok && step <= prev {
		return
	}
	b.last[s.FileName] = step
	fmt.Fprintln(b.out, line)
}

func (b *progressBoard) done(name string, res *uploader.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.live {
		fmt.Fprint(b.out, "\r\033[K")
	}
	resumed := ""
	if res.Resumed {
		resumed = " (resumed)"
	}
	fmt.Fprintf(b.out, "%s -> %s%s\n", name, res.Record.FileURL, resumed)
}

func formatProgress(s uploader.Snapshot) string {
	p := s.Progress
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s  %5.1f%%  %s / %s",
		s.FileName,
		p.Percent,
		humanize.IBytes(uint64(p.BytesUploaded)),
		humanize.IBytes(uint64(p.BytesTotal)),
	)
	if p.BytesPerSecond > 0 {
		fmt.Fprintf(&sb, "  %s/s", humanize.IBytes(uint64(p.BytesPerSecond)))
		if p.Estimated {
			sb.WriteString(" (est.)")
		}
	}
	return sb.String()
}
