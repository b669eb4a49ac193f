// Package pose models a single body pose sample and the pure transforms
// applied to it on the way to display: parsing the coordinate grid sent by
// the pose estimator, re-aligning it to a calibrated anchor that follows the
// device, and deriving limb segments from joint pairs.
package pose
