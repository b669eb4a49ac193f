package recorder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"bodytrack/pkg/engine"
	"bodytrack/pkg/pose"
	"bodytrack/pkg/recorder"
)

func sampleAt(seq uint64, base float64) engine.Sample {
	var joints pose.JointSet
	for i := range joints {
		joints[i] = pose.Vec3{X: base + float64(i), Y: -base, Z: 1}
	}
	return engine.Sample{
		Seq:       seq,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, int(seq)*1000, time.UTC),
		Joints:    joints,
		Offset:    pose.Vec3{X: 0.25},
		Device:    pose.Vec3{Z: 0.5},
	}
}

func TestJSONLWriterConsume(t *testing.T) {
	var buf bytes.Buffer
	writer := recorder.NewJSONLWriter(&buf, "sess-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan engine.Sample, 2)
	var (
		wg  sync.WaitGroup
		err error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		err = writer.Consume(ctx, ch)
	}()
	ch <- sampleAt(1, 0)
	ch <- sampleAt(2, 0.5)
	close(ch)
	wg.Wait()
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if writer.Written() != 2 {
		t.Fatalf("written = %d", writer.Written())
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("json unmarshal failed: %v", err)
	}
	if rec["session"] != "sess-1" || rec["seq"] != float64(1) {
		t.Fatalf("unexpected record: %v", rec)
	}
	joints, ok := rec["joints"].([]any)
	if !ok || len(joints) != pose.JointCount {
		t.Fatalf("joints not an array of %d: %v", pose.JointCount, rec["joints"])
	}
	if _, ok := rec["bootstrap"]; ok {
		t.Fatalf("bootstrap flag written for live frame")
	}
}

func TestReadJSONLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := recorder.NewJSONLWriter(&buf, "")
	boot := sampleAt(1, 0)
	boot.Bootstrap = true
	for _, s := range []engine.Sample{boot, sampleAt(2, 1)} {
		if err := writer.Write(s); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	buf.WriteString("\n   \n")

	frames, err := recorder.ReadJSONL(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("frames = %d", len(frames))
	}
	if !frames[0].Bootstrap || frames[1].Bootstrap {
		t.Fatalf("bootstrap flags: %v %v", frames[0].Bootstrap, frames[1].Bootstrap)
	}
	if frames[1].Joints != sampleAt(2, 1).Joints {
		t.Fatalf("joints did not survive the round trip")
	}
	if !frames[1].Timestamp.Equal(sampleAt(2, 1).Timestamp) {
		t.Fatalf("timestamp = %v", frames[1].Timestamp)
	}
}

func TestReadJSONLReportsLine(t *testing.T) {
	_, err := recorder.ReadJSONL(strings.NewReader("{\"seq\":1}\nnot json\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line 2 error, got %v", err)
	}
}
