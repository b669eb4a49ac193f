package recorder_test

import (
	"testing"

	"bodytrack/pkg/pose"
	"bodytrack/pkg/recorder"
)

func TestDeltasAreEarlierMinusLater(t *testing.T) {
	var a, b pose.JointSet
	a[0] = pose.Vec3{X: 1, Y: 2, Z: 3}
	b[0] = pose.Vec3{X: 0.5, Y: 2.5, Z: 3}
	b[7] = pose.Vec3{X: 3, Y: 4}

	d := recorder.Deltas(a, b)
	if d[0] != (pose.Vec3{X: 0.5, Y: -0.5, Z: 0}) {
		t.Fatalf("joint 0 delta = %v", d[0])
	}
	if d[7] != (pose.Vec3{X: -3, Y: -4}) {
		t.Fatalf("joint 7 delta = %v", d[7])
	}
}

func TestSeries(t *testing.T) {
	if recorder.Series(nil) != nil || recorder.Series(make([]recorder.Frame, 1)) != nil {
		t.Fatalf("expected no deltas for fewer than two frames")
	}

	frames := []recorder.Frame{
		{Seq: 4},
		{Seq: 5},
		{Seq: 7},
	}
	frames[1].Joints[3] = pose.Vec3{X: 3, Y: 4}
	frames[2].Joints[3] = pose.Vec3{X: 3, Y: 4}
	frames[2].Joints[9] = pose.Vec3{Z: 1}

	series := recorder.Series(frames)
	if len(series) != 2 {
		t.Fatalf("series length = %d", len(series))
	}
	if series[0].FromSeq != 4 || series[0].ToSeq != 5 || series[1].ToSeq != 7 {
		t.Fatalf("unexpected seq pairs: %+v", series)
	}
	if joint, dist := series[0].Largest(); joint != 3 || dist != 5 {
		t.Fatalf("largest = %d %g", joint, dist)
	}
	if joint, dist := series[1].Largest(); joint != 9 || dist != 1 {
		t.Fatalf("largest = %d %g", joint, dist)
	}
}
