package pose

import (
	"fmt"
	"math"
)

// JointCount is the number of joints in every pose sample.
const JointCount = 25

// Vec3 is a point or direction in the display coordinate space.
type Vec3 struct {
	X float64 `json:"x" toml:"x"`
	Y float64 `json:"y" toml:"y"`
	Z float64 `json:"z" toml:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// Length is the Euclidean norm.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}

// JointSet is one pose sample. Index 0 is the reference joint the skeleton is
// anchored on; the remaining indices follow JointNames.
type JointSet [JointCount]Vec3

// JointNames labels each JointSet index. Left and right are from the
// viewer's side, matching the limb table.
var JointNames = [JointCount]string{
	"head",
	"neck",
	"leftShoulder",
	"leftElbow",
	"leftWrist",
	"rightShoulder",
	"rightElbow",
	"rightWrist",
	"midHip",
	"leftHip",
	"leftKnee",
	"leftAnkle",
	"rightHip",
	"rightKnee",
	"rightAnkle",
	"leftEye",
	"rightEye",
	"leftEar",
	"rightEar",
	"rightBigToe",
	"rightSmallToe",
	"rightHeel",
	"leftBigToe",
	"leftSmallToe",
	"leftHeel",
}

// JointName returns the label for index i, or "" when out of range.
func JointName(i int) string {
	if i < 0 || i >= JointCount {
		return ""
	}
	return JointNames[i]
}
