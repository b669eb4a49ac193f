package pose_test

import (
	"testing"

	"bodytrack/pkg/pose"
)

func TestLimbTable(t *testing.T) {
	keys := pose.LimbKeys()
	if len(keys) != 16 || pose.LimbCount != 16 {
		t.Fatalf("unexpected limb count: %d", len(keys))
	}
	if keys[0] != (pose.LimbKey{Name: "neck", A: 0, B: 1}) {
		t.Fatalf("unexpected first limb: %+v", keys[0])
	}

	left, ok := pose.LookupLimb("leftFoot")
	if !ok || left.A != 24 || left.B != 22 {
		t.Fatalf("unexpected leftFoot: %+v ok=%v", left, ok)
	}
	right, ok := pose.LookupLimb("rightFoot")
	if !ok || right.A != 21 || right.B != 19 {
		t.Fatalf("unexpected rightFoot: %+v ok=%v", right, ok)
	}
	if _, ok := pose.LookupLimb("tail"); ok {
		t.Fatalf("unexpected lookup hit")
	}

	keys[0].A = 7
	if again := pose.LimbKeys(); again[0].A != 0 {
		t.Fatalf("limb table was modified through a copy")
	}
}

func TestSegments(t *testing.T) {
	joints := sampleJoints()
	segments := pose.Segments(joints)
	if len(segments) != pose.LimbCount {
		t.Fatalf("unexpected segment count: %d", len(segments))
	}
	for i, key := range pose.LimbKeys() {
		seg := segments[i]
		if seg.Name != key.Name {
			t.Fatalf("segment %d name = %s, want %s", i, seg.Name, key.Name)
		}
		if seg.Origin != joints[key.A] || seg.End != joints[key.B] {
			t.Fatalf("segment %s endpoints mismatch", seg.Name)
		}
		if seg.Vector != joints[key.B].Sub(joints[key.A]) {
			t.Fatalf("segment %s vector mismatch", seg.Name)
		}
	}
}

func TestJointName(t *testing.T) {
	if pose.JointName(0) != "head" || pose.JointName(24) != "leftHeel" {
		t.Fatalf("unexpected joint names")
	}
	if pose.JointName(25) != "" || pose.JointName(-1) != "" {
		t.Fatalf("expected empty name out of range")
	}
}
