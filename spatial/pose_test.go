package spatial

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"
)

func TestNewZeroPoseIsIdentity(t *testing.T) {
	p := NewZeroPose()
	v := r3.Vector{X: 1, Y: 2, Z: 3}
	test.That(t, p.Transform(v), test.ShouldResemble, v)
}

func TestNewPoseFromPointOnlyTranslates(t *testing.T) {
	p := NewPoseFromPoint(r3.Vector{X: 1, Y: 2, Z: 3})
	got := p.Transform(r3.Vector{X: 0, Y: 0, Z: 0})
	test.That(t, got, test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
}

func TestInvertUndoesTransform(t *testing.T) {
	p := NewPose(r3.Vector{X: 1, Y: -2, Z: 0.5}, quat.Number{Real: 0, Imag: 0, Jmag: 0, Kmag: 1})
	v := r3.Vector{X: 3, Y: 4, Z: 5}
	roundTrip := p.Invert().Transform(p.Transform(v))
	test.That(t, math.Abs(roundTrip.X-v.X) < 1e-9, test.ShouldBeTrue)
	test.That(t, math.Abs(roundTrip.Y-v.Y) < 1e-9, test.ShouldBeTrue)
	test.That(t, math.Abs(roundTrip.Z-v.Z) < 1e-9, test.ShouldBeTrue)
}

func TestComposeAppliesPThenQ(t *testing.T) {
	p := NewPoseFromPoint(r3.Vector{X: 1, Y: 0, Z: 0})
	q := NewPoseFromPoint(r3.Vector{X: 0, Y: 1, Z: 0})
	composed := Compose(p, q)
	v := r3.Vector{X: 0, Y: 0, Z: 0}
	want := q.Transform(p.Transform(v))
	test.That(t, composed.Transform(v), test.ShouldResemble, want)
}

func TestNewPoseNormalizesANonUnitOrientation(t *testing.T) {
	p := NewPose(r3.Vector{}, quat.Number{Real: 2})
	test.That(t, quat.Abs(p.Orientation()), test.ShouldAlmostEqual, 1.0)
}

func TestPoseAlmostEqualToleratesAntipodalQuaternions(t *testing.T) {
	p := NewPose(r3.Vector{X: 1}, quat.Number{Real: 1})
	q := NewPose(r3.Vector{X: 1}, quat.Number{Real: -1})
	test.That(t, PoseAlmostEqual(p, q, 1e-9), test.ShouldBeTrue)
}

func TestPoseAlmostEqualDetectsTranslationDifference(t *testing.T) {
	p := NewZeroPose()
	q := NewPoseFromPoint(r3.Vector{X: 1})
	test.That(t, PoseAlmostEqual(p, q, 1e-6), test.ShouldBeFalse)
}

func TestZeroValuePoseOrientationIsNotTheIdentity(t *testing.T) {
	// A Go zero-value Pose{} has an all-zero quaternion, not {Real: 1}: any
	// code relying on a freshly declared Pose behaving like NewZeroPose()
	// must construct it explicitly. rotate() collapses every vector to the
	// origin under this zero quaternion, regardless of the vector's value.
	var zero Pose
	test.That(t, zero.Transform(r3.Vector{X: 5, Y: 6, Z: 7}), test.ShouldResemble, r3.Vector{})
	test.That(t, zero.Orientation(), test.ShouldNotResemble, NewZeroPose().Orientation())
}
