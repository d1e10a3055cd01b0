// Package sensor is the external contract between a depth sensor and the
// integration pipeline (spec.md §6): the Model interface, and two concrete
// implementations, PinholeCamera and RotatingLidar.
//
// Grounded on go.viam.com/rdk/rimage/transform's PinholeCameraModel (kept
// its Fx/Fy/Ppx/Ppy field names and PixelToPoint/PointToPixel projection
// math) and cam_poses.go's mat.Dense-based pose bookkeeping, adapted from
// stereo pose estimation to a per-ray pose batch for spinning LiDAR.
package sensor

import "github.com/golang/geo/r3"

// Measurement is one pixel or ray's contribution to an integration pass:
// the depth-camera-frame point it back-projects to, plus optional colour.
type Measurement struct {
	Point    r3.Vector
	HasColor bool
	R, G, B  uint8
}

// Model is the sensor abstraction the allocation and update phases depend
// on (spec.md §6). A depth camera and a spinning LiDAR both implement it;
// the core never type-switches on which.
type Model interface {
	// Project maps a sensor-frame point to a pixel/ray index and its
	// along-axis depth. ok is false if the point falls outside the
	// sensor's field of view.
	Project(p r3.Vector) (u, v int, depth float64, ok bool)

	// BackProject maps a pixel/ray index and depth back to a sensor-frame
	// point, the inverse of Project.
	BackProject(u, v int, depth float64) r3.Vector

	// MeasurementFromPoint builds the Measurement for a given raw
	// pixel/ray reading, applying distortion correction if the model
	// carries a Distorter.
	MeasurementFromPoint(u, v int, depth float64) Measurement

	// NearDist and FarDist bound the sensor's valid depth range in
	// metres; readings outside are dropped by the allocator.
	NearDist() float64
	FarDist() float64

	// ComputeIntegrationScale recommends a block scale for a measurement
	// at the given depth, per spec.md §4.3's scale-selection curve: finer
	// scales near the sensor, coarser scales far away.
	ComputeIntegrationScale(depth float64, maxScale int) int

	// SphereInFrustum reports whether a world-space bounding sphere
	// intersects the sensor's current view frustum, used by the
	// octree.FrustumTester-driven iterator and alloc.CarveVolume. The
	// raycast package does not call it.
	SphereInFrustum(center r3.Vector, radius float64) bool

	// ProjectToPixelValue projects a world-space point through the sensor
	// and returns the point's depth minus the measured depth at that
	// pixel. The raycast package does not call it.
	ProjectToPixelValue(worldPoint r3.Vector) (value float64, ok bool)
}
