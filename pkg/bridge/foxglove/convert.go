package foxglove

import (
	"time"

	"bodytrack/pkg/engine"
	"bodytrack/pkg/pose"
)

const (
	markerTypeSphereList = 7
	markerTypeLineList   = 5
	markerActionAdd      = 0

	markerIDSkeleton = 1
	markerIDJoints   = 2

	skeletonLineWidth = 0.02
	jointDiameter     = 0.05
)

// Foxglove log levels.
const (
	LevelDebug   uint8 = 1
	LevelInfo    uint8 = 2
	LevelWarning uint8 = 3
	LevelError   uint8 = 4
)

var identity = Quaternion3{W: 1}

func frameTime(ts time.Time) FrameTime {
	return FrameTime{Sec: uint32(ts.Unix()), Nsec: uint32(ts.Nanosecond())}
}

func vec(v pose.Vec3) Vector3 {
	return Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

func jointsMessage(s engine.Sample, ts time.Time) JointsMessage {
	joints := make([]JointMsg, 0, pose.JointCount)
	for i, j := range s.Joints {
		joints = append(joints, JointMsg{
			Index: i,
			Name:  pose.JointName(i),
			X:     j.X,
			Y:     j.Y,
			Z:     j.Z,
		})
	}
	return JointsMessage{
		Seq:       s.Seq,
		TS:        ts.UTC().Format(time.RFC3339Nano),
		Bootstrap: s.Bootstrap,
		Joints:    joints,
		Offset:    vec(s.Offset),
		Device:    vec(s.Device),
	}
}

func (s *Server) markerHeader(ts time.Time) MarkerHeader {
	return MarkerHeader{
		FrameID: s.cfg.ParentFrameID,
		Stamp:   MarkerStamp{Sec: ts.Unix(), Nsec: int64(ts.Nanosecond())},
	}
}

// skeletonMarker draws every limb as a line segment.
func (s *Server) skeletonMarker(sample engine.Sample, ts time.Time) MarkerMessage {
	segments := sample.Segments
	if segments == nil {
		segments = pose.Segments(sample.Joints)
	}
	points := make([]Vector3, 0, 2*len(segments))
	for _, seg := range segments {
		points = append(points, vec(seg.Origin), vec(seg.End))
	}
	return MarkerMessage{
		Header: s.markerHeader(ts),
		NS:     "bodytrack.skeleton",
		ID:     markerIDSkeleton,
		Type:   markerTypeLineList,
		Action: markerActionAdd,
		Pose:   MarkerPose{Orientation: identity},
		Scale:  Vector3{X: skeletonLineWidth},
		Color:  ColorRGBA{R: 0.2, G: 0.8, B: 1, A: 1},
		Points: points,
	}
}

func (s *Server) jointMarker(sample engine.Sample, ts time.Time) MarkerMessage {
	points := make([]Vector3, 0, pose.JointCount)
	for _, j := range sample.Joints {
		points = append(points, vec(j))
	}
	return MarkerMessage{
		Header: s.markerHeader(ts),
		NS:     "bodytrack.joints",
		ID:     markerIDJoints,
		Type:   markerTypeSphereList,
		Action: markerActionAdd,
		Pose:   MarkerPose{Orientation: identity},
		Scale:  Vector3{X: jointDiameter, Y: jointDiameter, Z: jointDiameter},
		Color:  ColorRGBA{R: 1, G: 1, B: 1, A: 1},
		Points: points,
	}
}

// bodyTransform places the body frame at the anchor joint.
func (s *Server) bodyTransform(sample engine.Sample, ts time.Time) FrameTransformsMessage {
	return FrameTransformsMessage{Transforms: []FrameTransformMessage{{
		Timestamp:     frameTime(ts),
		ParentFrameID: s.cfg.ParentFrameID,
		ChildFrameID:  s.cfg.FrameID,
		Translation:   vec(sample.Joints[0]),
		Rotation:      identity,
	}}}
}

func (s *Server) logMessage(level uint8, msg string, ts time.Time) LogMessage {
	return LogMessage{
		Timestamp: frameTime(ts),
		Level:     level,
		Message:   msg,
		Name:      s.cfg.LogName,
	}
}
