package engine

import (
	"time"

	"bodytrack/pkg/pose"
)

// Sample is one display-ready pose.
type Sample struct {
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"ts"`
	Joints    pose.JointSet  `json:"joints"`
	Raw       pose.JointSet  `json:"raw"`
	Offset    pose.Vec3      `json:"offset"`
	Device    pose.Vec3      `json:"device"`
	Segments  []pose.Segment `json:"segments,omitempty"`
	Bootstrap bool           `json:"bootstrap,omitempty"`
}

// Clone returns a copy that shares nothing with s.
func (s Sample) Clone() Sample {
	out := s
	if s.Segments != nil {
		out.Segments = append([]pose.Segment(nil), s.Segments...)
	}
	return out
}
