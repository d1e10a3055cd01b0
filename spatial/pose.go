// Package spatial provides the rigid transforms used throughout the mapping
// engine: a sensor's world pose T_WS, a body-to-sensor offset T_BS, and the
// small amount of vector/quaternion arithmetic the integration pipeline needs
// to move points between frames.
//
// Grounded on go.viam.com/rdk/spatialmath's Orientation interface and its use
// of gonum's quat.Number for rotation composition (OrientationBetween's
// quat.Mul/quat.Conj pattern). Written fresh rather than adapted line-for-line
// because the teacher package's Pose/Geometry implementations were not part
// of the retrieved sources; see DESIGN.md.
package spatial

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform: a rotation followed by a translation, in the
// convention T_AB maps a point expressed in frame B to frame A.
type Pose struct {
	orientation quat.Number
	point       r3.Vector
}

// NewPose returns the pose with the given translation and rotation.
func NewPose(point r3.Vector, orientation quat.Number) Pose {
	return Pose{orientation: normalize(orientation), point: point}
}

// NewPoseFromPoint returns a pose with zero rotation and the given translation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return Pose{orientation: quat.Number{Real: 1}, point: point}
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	return Pose{orientation: quat.Number{Real: 1}}
}

// Point returns the pose's translation component.
func (p Pose) Point() r3.Vector { return p.point }

// Orientation returns the pose's rotation as a unit quaternion.
func (p Pose) Orientation() quat.Number { return p.orientation }

// Transform applies the pose to a point expressed in the pose's own (child)
// frame, returning that point expressed in the pose's parent frame:
// p_parent = R*p_child*R^-1 + t.
func (p Pose) Transform(v r3.Vector) r3.Vector {
	rotated := rotate(p.orientation, v)
	return rotated.Add(p.point)
}

// Invert returns the pose that undoes p.
func (p Pose) Invert() Pose {
	inv := quat.Conj(p.orientation)
	negPoint := rotate(inv, p.point.Mul(-1))
	return Pose{orientation: inv, point: negPoint}
}

// Compose returns the pose equivalent to applying p first, then q:
// composed.Transform(v) == q.Transform(p.Transform(v)).
func Compose(p, q Pose) Pose {
	orientation := normalize(quat.Mul(q.orientation, p.orientation))
	point := rotate(q.orientation, p.point).Add(q.point)
	return Pose{orientation: orientation, point: point}
}

// PoseAlmostEqual reports whether two poses are within eps of each other in
// both translation and rotation.
func PoseAlmostEqual(p, q Pose, eps float64) bool {
	if p.point.Sub(q.point).Norm() > eps {
		return false
	}
	d := quat.Abs(quat.Sub(p.orientation, q.orientation))
	return d <= eps || math.Abs(d-2) <= eps // q and -q represent the same rotation
}

func normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// rotate applies a unit quaternion rotation to a vector: q*v*q^-1.
func rotate(q quat.Number, v r3.Vector) r3.Vector {
	vq := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rq := quat.Mul(quat.Mul(q, vq), quat.Conj(q))
	return r3.Vector{X: rq.Imag, Y: rq.Jmag, Z: rq.Kmag}
}
