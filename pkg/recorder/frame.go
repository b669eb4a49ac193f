package recorder

import (
	"time"

	"bodytrack/pkg/engine"
	"bodytrack/pkg/pose"
)

// Frame is the persisted form of a rendered sample.
type Frame struct {
	Session   string        `json:"session,omitempty"`
	Seq       uint64        `json:"seq"`
	Timestamp time.Time     `json:"ts"`
	Joints    pose.JointSet `json:"joints"`
	Offset    pose.Vec3     `json:"offset"`
	Device    pose.Vec3     `json:"device"`
	Bootstrap bool          `json:"bootstrap,omitempty"`
}

func FrameFromSample(session string, s engine.Sample) Frame {
	return Frame{
		Session:   session,
		Seq:       s.Seq,
		Timestamp: s.Timestamp.UTC(),
		Joints:    s.Joints,
		Offset:    s.Offset,
		Device:    s.Device,
		Bootstrap: s.Bootstrap,
	}
}
