package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultTick = 16 * time.Millisecond

// Publisher receives one sample per render tick that produced something new.
type Publisher interface {
	Publish(Sample)
}

// Ticker is the render-side consumer of the mailbox. Each tick takes the
// newest queued sample, remembers it and publishes it. When nothing new
// arrived the previous pose stays current.
type Ticker struct {
	in       *Mailbox
	out      Publisher
	interval time.Duration

	mu       sync.RWMutex
	latest   Sample
	has      bool
	captured *Sample

	rendered atomic.Uint64
	skipped  atomic.Uint64
}

func NewTicker(in *Mailbox, out Publisher, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultTick
	}
	return &Ticker{in: in, out: out, interval: interval}
}

func (t *Ticker) Run(ctx context.Context) {
	tick := time.NewTicker(t.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			t.Tick()
		}
	}
}

// Tick runs one render step and reports whether a new sample was taken.
func (t *Ticker) Tick() bool {
	s, skipped, ok := t.in.Drain()
	if !ok {
		return false
	}
	if skipped > 0 {
		t.skipped.Add(uint64(skipped))
	}
	t.mu.Lock()
	t.latest = s
	t.has = true
	t.mu.Unlock()
	t.rendered.Add(1)
	if t.out != nil {
		t.out.Publish(s)
	}
	return true
}

func (t *Ticker) Latest() (Sample, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest.Clone(), t.has
}

// Capture freezes a copy of the current pose.
func (t *Ticker) Capture() (Sample, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.has {
		return Sample{}, false
	}
	c := t.latest.Clone()
	t.captured = &c
	return c.Clone(), true
}

func (t *Ticker) Release() {
	t.mu.Lock()
	t.captured = nil
	t.mu.Unlock()
}

func (t *Ticker) Captured() (Sample, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.captured == nil {
		return Sample{}, false
	}
	return t.captured.Clone(), true
}

func (t *Ticker) Rendered() uint64 {
	return t.rendered.Load()
}

// Skipped counts samples superseded by a newer one within a single tick.
func (t *Ticker) Skipped() uint64 {
	return t.skipped.Load()
}
