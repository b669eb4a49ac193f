package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"bodytrack/pkg/engine"
	"bodytrack/pkg/pose"
)

type fakeSource struct {
	latest   engine.Sample
	has      bool
	captured *engine.Sample
}

func (f *fakeSource) Latest() (engine.Sample, bool) { return f.latest, f.has }

func (f *fakeSource) Capture() (engine.Sample, bool) {
	if !f.has {
		return engine.Sample{}, false
	}
	c := f.latest
	f.captured = &c
	return c, true
}

func (f *fakeSource) Release() { f.captured = nil }

func (f *fakeSource) Captured() (engine.Sample, bool) {
	if f.captured == nil {
		return engine.Sample{}, false
	}
	return *f.captured, true
}

func (f *fakeSource) Rendered() uint64 { return 7 }
func (f *fakeSource) Skipped() uint64  { return 2 }

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func sampleAt(seq uint64, x float64) engine.Sample {
	var j pose.JointSet
	j[0] = pose.Vec3{X: x}
	return engine.Sample{Seq: seq, Timestamp: time.Unix(0, 0), Joints: j}
}

func TestMonitorShowsLatestPose(t *testing.T) {
	src := &fakeSource{}
	m := newMonitorModel(src, func() bool { return true }, time.Millisecond)

	if view := m.View(); !strings.Contains(view, "no pose yet") {
		t.Fatalf("expected empty view, got:\n%s", view)
	}

	src.latest, src.has = sampleAt(3, 1.25), true
	next, cmd := m.Update(refreshMsg(time.Now()))
	if cmd == nil {
		t.Fatalf("expected refresh to schedule another tick")
	}
	view := next.View()
	for _, want := range []string{"stream connected", "rendered=7 skipped=2", "sample 3", "live", "1.2500"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestMonitorCaptureFreezesPose(t *testing.T) {
	src := &fakeSource{latest: sampleAt(1, 0.5), has: true}
	var m tea.Model = newMonitorModel(src, nil, time.Millisecond)

	m, _ = m.Update(key('p'))
	if src.captured == nil {
		t.Fatalf("expected capture on p")
	}

	src.latest = sampleAt(2, 9)
	m, _ = m.Update(refreshMsg(time.Now()))
	view := m.View()
	if !strings.Contains(view, "sample 1") || !strings.Contains(view, "captured") {
		t.Fatalf("expected frozen sample 1, got:\n%s", view)
	}

	m, _ = m.Update(key('o'))
	m, _ = m.Update(refreshMsg(time.Now()))
	view = m.View()
	if !strings.Contains(view, "sample 2") || !strings.Contains(view, "live") {
		t.Fatalf("expected live sample 2 after release, got:\n%s", view)
	}
}

func TestMonitorCaptureWithoutPose(t *testing.T) {
	var m tea.Model = newMonitorModel(&fakeSource{}, nil, time.Millisecond)
	m, _ = m.Update(key('p'))
	if !strings.Contains(m.View(), "nothing to capture") {
		t.Fatalf("expected capture hint, got:\n%s", m.View())
	}
}

func TestMonitorQuit(t *testing.T) {
	m := newMonitorModel(&fakeSource{}, nil, time.Millisecond)
	next, cmd := m.Update(key('q'))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if next.View() != "" {
		t.Fatalf("expected empty view after quit")
	}
}
