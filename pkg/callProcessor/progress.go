package callProcessor

import (
	"fmt"
	"io"
	"time"
)

// progressLine keeps a single status line updated in place on a terminal.
type progressLine struct {
	w        io.Writer
	interval time.Duration
	last     time.Time
	written  bool
	now      func() time.Time
}

func newProgressLine(w io.Writer, interval time.Duration) *progressLine {
	return &progressLine{
		w:        w,
		interval: interval,
		now:      time.Now,
	}
}

// due reports whether enough time has passed since the last update.
func (p *progressLine) due() bool {
	if p == nil || p.w == nil {
		return false
	}
	return !p.written || p.now().Sub(p.last) >= p.interval
}

func (p *progressLine) update(calls, orders uint64, callers int) {
	if p == nil || p.w == nil {
		return
	}
	p.last = p.now()
	p.written = true
	_, _ = fmt.Fprintf(p.w, "\r%d calls, %d orders, %d callers...", calls, orders, callers)
}

// finish terminates the status line so later output starts on a fresh line.
func (p *progressLine) finish() {
	if p == nil || p.w == nil || !p.written {
		return
	}
	_, _ = fmt.Fprint(p.w, "\n")
}
