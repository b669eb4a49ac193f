package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"bodytrack/pkg/engine"
	"bodytrack/pkg/pose"
)

type publishRecorder struct {
	mu  sync.Mutex
	got []engine.Sample
}

func (p *publishRecorder) Publish(s engine.Sample) {
	p.mu.Lock()
	p.got = append(p.got, s)
	p.mu.Unlock()
}

func (p *publishRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.got)
}

func TestTickerPublishesNewestOnly(t *testing.T) {
	box := engine.NewMailbox(3)
	pub := &publishRecorder{}
	tk := engine.NewTicker(box, pub, time.Hour)

	if tk.Tick() {
		t.Fatalf("tick on empty mailbox reported an update")
	}
	if _, ok := tk.Latest(); ok {
		t.Fatalf("latest set before any sample")
	}

	box.Offer(engine.Sample{Seq: 1})
	box.Offer(engine.Sample{Seq: 2})
	if !tk.Tick() {
		t.Fatalf("tick missed queued samples")
	}
	if pub.count() != 1 || pub.got[0].Seq != 2 {
		t.Fatalf("published %+v", pub.got)
	}
	if tk.Skipped() != 1 || tk.Rendered() != 1 {
		t.Fatalf("skipped=%d rendered=%d", tk.Skipped(), tk.Rendered())
	}

	if tk.Tick() {
		t.Fatalf("second tick without new data reported an update")
	}
	latest, ok := tk.Latest()
	if !ok || latest.Seq != 2 {
		t.Fatalf("stale pose not retained: %d", latest.Seq)
	}
}

func TestTickerCaptureRelease(t *testing.T) {
	box := engine.NewMailbox(3)
	tk := engine.NewTicker(box, nil, time.Hour)

	if _, ok := tk.Capture(); ok {
		t.Fatalf("capture without a pose succeeded")
	}

	box.Offer(engine.Sample{Seq: 1, Segments: []pose.Segment{{Name: "neck"}}})
	tk.Tick()
	captured, ok := tk.Capture()
	if !ok || captured.Seq != 1 {
		t.Fatalf("capture: %d ok=%v", captured.Seq, ok)
	}
	captured.Segments[0].Name = "mutated"

	box.Offer(engine.Sample{Seq: 2})
	tk.Tick()
	held, ok := tk.Captured()
	if !ok || held.Seq != 1 || held.Segments[0].Name != "neck" {
		t.Fatalf("captured pose changed: %+v", held)
	}

	tk.Release()
	if _, ok := tk.Captured(); ok {
		t.Fatalf("capture still held after release")
	}
}

func TestTickerRunStopsOnCancel(t *testing.T) {
	box := engine.NewMailbox(3)
	pub := &publishRecorder{}
	tk := engine.NewTicker(box, pub, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tk.Run(ctx)
		close(done)
	}()

	box.Offer(engine.Sample{Seq: 1})
	deadline := time.After(2 * time.Second)
	for pub.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("ticker never published")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("ticker did not stop")
	}
}
