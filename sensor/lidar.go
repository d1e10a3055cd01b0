package sensor

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/volumap/spatial"
)

// RotatingLidar is a Model for a spinning multi-beam LiDAR, addressed by
// (ring, azimuthBin) instead of (u, v) pixel coordinates. Grounded on
// cam_poses.go's per-shot CamPose bookkeeping (there, one pose per stereo
// frame; here, one pose per azimuth bin as the head sweeps through a
// revolution), replacing that file's essential-matrix pose estimation
// (no SPEC_FULL.md consumer) with the fixed vertical beam table a spinning
// LiDAR ships with.
type RotatingLidar struct {
	// BeamElevations is the fixed per-ring elevation angle, in radians,
	// one entry per ring (e.g. 16, 32 or 64 for common sensors).
	BeamElevations []float64
	AzimuthBins    int // angular resolution of one revolution

	near, far float64

	// pose is this sweep's base pose; ray i in bin b is emitted from
	// pose composed with the bin's incremental rotation, since the
	// sensor itself rotates during one revolution.
	pose        spatial.Pose
	binPose     []spatial.Pose // per-azimuth-bin pose, length AzimuthBins
	rangeByRing [][]float64    // [ring][azimuthBin] range in metres, 0 = no return
}

// NewRotatingLidar constructs a RotatingLidar with the given per-ring beam
// elevation table.
func NewRotatingLidar(beamElevations []float64, azimuthBins int, near, far float64) *RotatingLidar {
	return &RotatingLidar{
		BeamElevations: beamElevations,
		AzimuthBins:    azimuthBins,
		near:           near,
		far:            far,
	}
}

// SetSweep attaches one revolution's per-bin poses and range returns.
func (l *RotatingLidar) SetSweep(basePose spatial.Pose, binPose []spatial.Pose, rangeByRing [][]float64) {
	l.pose, l.binPose, l.rangeByRing = basePose, binPose, rangeByRing
}

// Project maps a sensor-frame point to the (ring, azimuthBin) that would
// have measured it, treating u as ring and v as azimuth bin.
func (l *RotatingLidar) Project(p r3.Vector) (u, v int, depth float64, ok bool) {
	depth = p.Norm()
	if depth == 0 {
		return 0, 0, 0, false
	}
	elevation := math.Asin(p.Z / depth)
	ring := nearestRing(l.BeamElevations, elevation)
	if ring < 0 {
		return 0, 0, 0, false
	}
	azimuth := math.Atan2(p.Y, p.X)
	bin := int(math.Round((azimuth + math.Pi) / (2 * math.Pi) * float64(l.AzimuthBins)))
	bin = ((bin % l.AzimuthBins) + l.AzimuthBins) % l.AzimuthBins
	return ring, bin, depth, true
}

func nearestRing(elevations []float64, target float64) int {
	best, bestDiff := -1, math.Inf(1)
	for i, e := range elevations {
		if d := math.Abs(e - target); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

// BackProject maps a (ring, azimuthBin) reading at the given range back to
// a sensor-frame point.
func (l *RotatingLidar) BackProject(ring, bin int, depth float64) r3.Vector {
	elevation := l.BeamElevations[ring]
	azimuth := float64(bin)/float64(l.AzimuthBins)*2*math.Pi - math.Pi
	horiz := depth * math.Cos(elevation)
	return r3.Vector{
		X: horiz * math.Cos(azimuth),
		Y: horiz * math.Sin(azimuth),
		Z: depth * math.Sin(elevation),
	}
}

func (l *RotatingLidar) MeasurementFromPoint(ring, bin int, depth float64) Measurement {
	return Measurement{Point: l.BackProject(ring, bin, depth)}
}

func (l *RotatingLidar) NearDist() float64 { return l.near }
func (l *RotatingLidar) FarDist() float64  { return l.far }

// ComputeIntegrationScale mirrors PinholeCamera's linear near/far mapping;
// a spinning LiDAR's angular resolution degrades with range in the same
// way a camera's pixel footprint does.
func (l *RotatingLidar) ComputeIntegrationScale(depth float64, maxScale int) int {
	if maxScale <= 0 || l.far <= l.near {
		return 0
	}
	frac := (depth - l.near) / (l.far - l.near)
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return int(frac * float64(maxScale))
}

// SphereInFrustum treats the LiDAR's frustum as its full near/far spherical
// shell around the current sweep's base pose, since a completed revolution
// covers all azimuths.
func (l *RotatingLidar) SphereInFrustum(center r3.Vector, radius float64) bool {
	local := l.pose.Invert().Transform(center)
	d := local.Norm()
	return d-radius <= l.far && d+radius >= l.near
}

// ProjectToPixelValue looks up the live sweep's measured range at the bin
// worldPoint projects to, returning the signed range residual.
func (l *RotatingLidar) ProjectToPixelValue(worldPoint r3.Vector) (float64, bool) {
	if l.rangeByRing == nil {
		return 0, false
	}
	local := l.pose.Invert().Transform(worldPoint)
	ring, bin, depth, ok := l.Project(local)
	if !ok || ring >= len(l.rangeByRing) {
		return 0, false
	}
	measured := l.rangeByRing[ring][bin]
	if measured <= 0 {
		return 0, false
	}
	return depth - measured, true
}
