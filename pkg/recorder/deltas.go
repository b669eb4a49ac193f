package recorder

import "bodytrack/pkg/pose"

// FrameDelta is the per-joint movement between two consecutive frames,
// measured as earlier minus later.
type FrameDelta struct {
	FromSeq uint64
	ToSeq   uint64
	Joints  pose.JointSet
}

func Deltas(prev, next pose.JointSet) pose.JointSet {
	var out pose.JointSet
	for i := range out {
		out[i] = prev[i].Sub(next[i])
	}
	return out
}

// Series returns one FrameDelta per adjacent pair in frames.
func Series(frames []Frame) []FrameDelta {
	if len(frames) < 2 {
		return nil
	}
	out := make([]FrameDelta, 0, len(frames)-1)
	for i := 1; i < len(frames); i++ {
		out = append(out, FrameDelta{
			FromSeq: frames[i-1].Seq,
			ToSeq:   frames[i].Seq,
			Joints:  Deltas(frames[i-1].Joints, frames[i].Joints),
		})
	}
	return out
}

// Largest returns the joint that moved furthest and the distance.
func (d FrameDelta) Largest() (int, float64) {
	best, dist := 0, -1.0
	for i, v := range d.Joints {
		if m := v.Length(); m > dist {
			best, dist = i, m
		}
	}
	return best, dist
}
