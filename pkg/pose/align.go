package pose

import (
	"math"
	"sync/atomic"
)

// Aligner re-anchors raw joint sets so joint 0 lands on a calibrated
// reference point that follows the device, and flips the vertical axis into
// the display convention. The reference is fixed at construction.
type Aligner struct {
	reference Vec3
}

func NewAligner(reference Vec3) *Aligner {
	return &Aligner{reference: reference}
}

func (a *Aligner) Reference() Vec3 {
	return a.reference
}

// Track returns the anchor for the given device position. Horizontal device
// motion moves the anchor with the user; vertical and depth motion move it
// the opposite way so the body stays put in the room.
func (a *Aligner) Track(device Vec3) Vec3 {
	return Vec3{
		X: a.reference.X + device.X,
		Y: a.reference.Y - device.Y,
		Z: a.reference.Z - device.Z,
	}
}

// Apply re-aligns j for the device position and returns the aligned set with
// the offset that was subtracted from every joint. j is not modified.
func (a *Aligner) Apply(j JointSet, device Vec3) (JointSet, Vec3) {
	anchor := a.Track(device)
	offset := j[0].Sub(anchor)

	var out JointSet
	out[0] = anchor
	out[0].Y = -out[0].Y
	for i := 1; i < JointCount; i++ {
		v := j[i].Sub(offset)
		v.Y = -v.Y
		out[i] = v
	}
	return out, offset
}

// PositionSource supplies the latest device position. Implementations may
// return a sample that is one tick stale.
type PositionSource interface {
	Position() Vec3
}

// StaticPosition is a fixed device position.
type StaticPosition Vec3

func (p StaticPosition) Position() Vec3 {
	return Vec3(p)
}

// LivePosition holds a device position updated by one goroutine and read by
// another.
type LivePosition struct {
	x, y, z atomic.Uint64
}

func NewLivePosition(initial Vec3) *LivePosition {
	p := &LivePosition{}
	p.Set(initial)
	return p
}

// Set stores a new sample. Components are stored individually, so a reader
// racing a writer may see a mix of two consecutive samples.
func (p *LivePosition) Set(v Vec3) {
	p.x.Store(math.Float64bits(v.X))
	p.y.Store(math.Float64bits(v.Y))
	p.z.Store(math.Float64bits(v.Z))
}

func (p *LivePosition) Position() Vec3 {
	return Vec3{
		X: math.Float64frombits(p.x.Load()),
		Y: math.Float64frombits(p.y.Load()),
		Z: math.Float64frombits(p.z.Load()),
	}
}
