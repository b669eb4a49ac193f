package engine

import (
	"context"
	"sync"
	"sync/atomic"
)

const (
	DefaultQueueSize = 3
	MaxQueueSize     = 16
)

// Mailbox is the bounded hand-off between the reader goroutine and the
// render tick. Offer never blocks: when the mailbox is full the oldest
// sample is dropped. One producer and one consumer.
type Mailbox struct {
	mu     sync.Mutex
	buf    []Sample
	head   int
	count  int
	notify chan struct{}

	offered atomic.Uint64
	dropped atomic.Uint64
}

// NewMailbox clamps capacity to [1, MaxQueueSize]; zero or less selects
// DefaultQueueSize.
func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	capacity = min(capacity, MaxQueueSize)
	return &Mailbox{
		buf:    make([]Sample, capacity),
		notify: make(chan struct{}, 1),
	}
}

func (m *Mailbox) Cap() int {
	return len(m.buf)
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Offer enqueues s and reports whether an older sample was dropped to make
// room.
func (m *Mailbox) Offer(s Sample) bool {
	m.offered.Add(1)

	m.mu.Lock()
	dropped := false
	if m.count == len(m.buf) {
		m.buf[m.head] = Sample{}
		m.head = (m.head + 1) % len(m.buf)
		m.count--
		dropped = true
	}
	m.buf[(m.head+m.count)%len(m.buf)] = s
	m.count++
	m.mu.Unlock()

	if dropped {
		m.dropped.Add(1)
	}
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return dropped
}

// Poll removes and returns the oldest queued sample.
func (m *Mailbox) Poll() (Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.popLocked()
}

// Drain empties the mailbox and returns the newest sample along with how
// many older ones were skipped.
func (m *Mailbox) Drain() (Sample, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 {
		return Sample{}, 0, false
	}
	skipped := m.count - 1
	var last Sample
	for m.count > 0 {
		last, _ = m.popLocked()
	}
	return last, skipped, true
}

// Wait blocks until a sample is available or ctx is done.
func (m *Mailbox) Wait(ctx context.Context) (Sample, error) {
	for {
		if s, ok := m.Poll(); ok {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return Sample{}, ctx.Err()
		case <-m.notify:
		}
	}
}

func (m *Mailbox) Offered() uint64 {
	return m.offered.Load()
}

func (m *Mailbox) Dropped() uint64 {
	return m.dropped.Load()
}

func (m *Mailbox) popLocked() (Sample, bool) {
	if m.count == 0 {
		return Sample{}, false
	}
	s := m.buf[m.head]
	m.buf[m.head] = Sample{}
	m.head = (m.head + 1) % len(m.buf)
	m.count--
	return s, true
}
