package sensor

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/volumap/spatial"
)

func TestRotatingLidarProjectAndBackProjectRoundTrip(t *testing.T) {
	l := NewRotatingLidar([]float64{-0.2, 0, 0.2}, 360, 0.5, 50)

	p := r3.Vector{X: 3, Y: 0, Z: 0}
	ring, bin, depth, ok := l.Project(p)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ring, test.ShouldEqual, 1)
	test.That(t, depth, test.ShouldAlmostEqual, 3.0, 1e-9)

	back := l.BackProject(ring, bin, depth)
	test.That(t, back.X, test.ShouldAlmostEqual, p.X, 1e-6)
	test.That(t, back.Y, test.ShouldAlmostEqual, p.Y, 1e-6)
	test.That(t, back.Z, test.ShouldAlmostEqual, p.Z, 1e-6)
}

func TestRotatingLidarProjectRejectsZeroRangePoint(t *testing.T) {
	l := NewRotatingLidar([]float64{0}, 360, 0.5, 50)
	_, _, _, ok := l.Project(r3.Vector{})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestRotatingLidarComputeIntegrationScaleClamps(t *testing.T) {
	l := NewRotatingLidar([]float64{0}, 360, 1.0, 5.0)
	test.That(t, l.ComputeIntegrationScale(0, 4), test.ShouldEqual, 0)
	test.That(t, l.ComputeIntegrationScale(9, 4), test.ShouldEqual, 4)
}

func TestRotatingLidarSphereInFrustumRespectsRangeShell(t *testing.T) {
	l := NewRotatingLidar([]float64{0}, 360, 1.0, 5.0)
	l.SetSweep(spatial.NewZeroPose(), nil, nil)

	test.That(t, l.SphereInFrustum(r3.Vector{X: 3, Y: 0, Z: 0}, 0.1), test.ShouldBeTrue)
	test.That(t, l.SphereInFrustum(r3.Vector{X: 0.2, Y: 0, Z: 0}, 0.01), test.ShouldBeFalse)
}

func TestRotatingLidarProjectToPixelValueWithoutSweepFails(t *testing.T) {
	l := NewRotatingLidar([]float64{0}, 360, 1.0, 5.0)
	_, ok := l.ProjectToPixelValue(r3.Vector{X: 3, Y: 0, Z: 0})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestRotatingLidarProjectToPixelValueReturnsResidual(t *testing.T) {
	l := NewRotatingLidar([]float64{0}, 8, 1.0, 5.0)
	rangeByRing := [][]float64{make([]float64, 8)}
	// Bin for azimuth 0 is AzimuthBins/2 per Project's (azimuth+pi) mapping.
	bin := int(math.Round((0 + math.Pi) / (2 * math.Pi) * float64(l.AzimuthBins)))
	bin = bin % l.AzimuthBins
	rangeByRing[0][bin] = 2.5
	l.SetSweep(spatial.NewZeroPose(), nil, rangeByRing)

	diff, ok := l.ProjectToPixelValue(r3.Vector{X: 3, Y: 0, Z: 0})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, diff, test.ShouldAlmostEqual, 0.5, 1e-6)
}
