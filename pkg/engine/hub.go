package engine

import (
	"context"
	"sort"
	"sync"
)

const (
	defaultBroadcastBuffer = 64
	defaultSinkBuffer      = 8
)

// Hub fans rendered samples out to named display sinks. A sink whose buffer
// is full misses the sample instead of stalling the render tick; the miss is
// counted against the sink's name.
type Hub struct {
	broadcast  chan Sample
	register   chan *sink
	unregister chan chan Sample
	sinks      map[chan Sample]*sink
	sinkBuf    int

	mu    sync.Mutex
	drops map[string]uint64
}

type sink struct {
	name string
	ch   chan Sample
}

// SinkDrops is the number of samples one sink missed.
type SinkDrops struct {
	Sink    string
	Dropped uint64
}

type Option func(*Hub)

func WithBroadcastBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.broadcast = make(chan Sample, size)
		}
	}
}

// WithClientBuffer sets the buffer for sinks that subscribe without one.
func WithClientBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.sinkBuf = size
		}
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		broadcast:  make(chan Sample, defaultBroadcastBuffer),
		register:   make(chan *sink),
		unregister: make(chan chan Sample),
		sinks:      make(map[chan Sample]*sink),
		sinkBuf:    defaultSinkBuffer,
		drops:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run delivers published samples until ctx is done, then closes every sink
// channel. Subscribe blocks until Run is serving.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for ch := range h.sinks {
				close(ch)
			}
			return
		case s := <-h.register:
			h.sinks[s.ch] = s
			h.mu.Lock()
			if _, ok := h.drops[s.name]; !ok {
				h.drops[s.name] = 0
			}
			h.mu.Unlock()
		case ch := <-h.unregister:
			if _, ok := h.sinks[ch]; ok {
				delete(h.sinks, ch)
				close(ch)
			}
		case sample := <-h.broadcast:
			h.deliver(sample)
		}
	}
}

func (h *Hub) deliver(sample Sample) {
	var missed []string
	for ch, s := range h.sinks {
		select {
		case ch <- sample:
		default:
			missed = append(missed, s.name)
		}
	}
	if len(missed) == 0 {
		return
	}
	h.mu.Lock()
	for _, name := range missed {
		h.drops[name]++
	}
	h.mu.Unlock()
}

// Subscribe registers a sink with the default buffer. Sinks sharing a name
// share a drop counter.
func (h *Hub) Subscribe(name string) chan Sample {
	return h.SubscribeWithBuffer(name, h.sinkBuf)
}

func (h *Hub) SubscribeWithBuffer(name string, size int) chan Sample {
	if size <= 0 {
		size = h.sinkBuf
	}
	s := &sink{name: name, ch: make(chan Sample, size)}
	h.register <- s
	return s.ch
}

func (h *Hub) Unsubscribe(ch chan Sample) {
	h.unregister <- ch
}

func (h *Hub) Publish(sample Sample) {
	h.broadcast <- sample
}

// Drops reports missed samples per sink name, sorted by name. Names stay
// listed after their sinks unsubscribe.
func (h *Hub) Drops() []SinkDrops {
	h.mu.Lock()
	out := make([]SinkDrops, 0, len(h.drops))
	for name, n := range h.drops {
		out = append(out, SinkDrops{Sink: name, Dropped: n})
	}
	h.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Sink < out[j].Sink })
	return out
}

// Dropped is the total across all sinks.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var total uint64
	for _, n := range h.drops {
		total += n
	}
	return total
}
