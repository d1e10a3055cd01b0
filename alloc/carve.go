package alloc

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/sensor"
	"go.viam.com/volumap/spatial"
)

// VarianceState classifies the local depth variance a block's projected
// pixel footprint exhibits, per spec.md §4.2's volume-carving allocator.
type VarianceState uint8

const (
	// Constant means the footprint's depth samples agree closely: a flat
	// patch of surface, or uniformly free/occluded space.
	Constant VarianceState = iota
	// Gradient means the footprint spans a depth discontinuity, e.g. a
	// silhouette edge, and needs finer per-voxel integration.
	Gradient
)

// CarveResult is the output of CarveVolume (spec.md §4.2: "(node_list_to_
// free, block_list_to_update, per_block_variance_state, per_block_
// projects_inside)").
type CarveResult struct {
	FreeNodes      []octree.Ref
	UpdateBlocks   []octree.Ref
	Variance       map[octree.Ref]VarianceState
	ProjectsInside map[octree.Ref]bool
}

// CarveVolume implements spec.md §4.2's volume-carving allocator: a
// recursive descent from the root that classifies each octant against the
// sensor's frustum and expected surface band, grounded on
// go.viam.com/rdk/pointcloud/collision_octree.go's CollidesWith recursion
// (box-collision prune, then switch on node kind).
func CarveVolume(tree *octree.Tree, model sensor.Model, sensorPose spatial.Pose, depth *sensor.DepthImage, ts uint64) (*CarveResult, error) {
	res := &CarveResult{
		Variance:       make(map[octree.Ref]VarianceState),
		ProjectsInside: make(map[octree.Ref]bool),
	}
	if err := carveDescend(tree, tree.Root(), model, sensorPose, depth, ts, res); err != nil {
		return nil, err
	}
	return res, nil
}

func carveDescend(tree *octree.Tree, r octree.Ref, model sensor.Model, sensorPose spatial.Pose, depth *sensor.DepthImage, ts uint64, res *CarveResult) error {
	oct, ok := tree.Deref(r)
	if !ok {
		return nil
	}
	cfg := tree.Config()
	voxelRes := cfg.Res

	center := oct.Center().Mul(voxelRes)
	radius := oct.BoundingRadius() * voxelRes

	// Outside frustum: skipped entirely (spec.md §4.2).
	if !model.SphereInFrustum(center, radius) {
		return nil
	}

	footprint, ok := projectFootprint(model, sensorPose, oct, voxelRes)
	if !ok {
		// None of the octant's corners project into the image: treat the
		// same as outside the frustum.
		return nil
	}

	// Entirely in front of the near plane: ignore (too close to resolve).
	if footprint.maxDepth < model.NearDist() {
		return nil
	}
	// Behind the far plane: nothing to say about it this frame.
	if footprint.minDepth > model.FarDist() {
		return nil
	}

	surfMin, surfMax, variance, sampled := sampleSurfaceBand(depth, footprint)
	if !sampled {
		return nil
	}
	tau := cfg.Tau()
	bandMin, bandMax := surfMin-tau, surfMax+tau

	switch {
	case footprint.maxDepth < bandMin:
		// Entirely nearer than the expected surface band: this octant is
		// confidently free space between the sensor and the surface. A
		// block is queued for a constant-variance update; an interior node
		// is recorded in FreeNodes as it is, without descending.
		if r.IsBlock() {
			res.UpdateBlocks = append(res.UpdateBlocks, r)
			res.Variance[r] = Constant
			res.ProjectsInside[r] = footprint.insideImage
			return nil
		}
		res.FreeNodes = append(res.FreeNodes, r)
		return nil

	case footprint.minDepth > bandMax:
		// Entirely beyond the far side of the surface band: occluded,
		// unknown space. Leave it untouched this frame.
		return nil

	default:
		// Spans the surface band: recurse to block granularity.
		if r.IsBlock() {
			res.UpdateBlocks = append(res.UpdateBlocks, r)
			res.Variance[r] = variance
			res.ProjectsInside[r] = footprint.insideImage
			return nil
		}
		for i := 0; i < 8; i++ {
			child, _, err := tree.Allocate(r, i, ts)
			if err != nil {
				return err
			}
			if err := carveDescend(tree, child, model, sensorPose, depth, ts, res); err != nil {
				return err
			}
		}
		return nil
	}
}

// footprint is an octant's projected pixel-space bounding box and its
// depth range over all eight of its corners.
type footprint struct {
	uMin, uMax, vMin, vMax int
	minDepth, maxDepth     float64
	insideImage            bool
}

// projectFootprint projects an octant's eight voxel-space corners through
// model and returns their pixel-space bounding box and depth range. Corners
// are transformed from world space into the sensor's own frame first, since
// Model.Project (like PinholeCamera.Project) operates on sensor-frame
// points. The bounding box covers only the corners that project; the depth
// range covers all eight, using the model's depth where a corner projects
// and its sensor-frame z otherwise. ok is false if no corner projects into
// the sensor's view.
func projectFootprint(model sensor.Model, sensorPose spatial.Pose, oct octree.Octant, voxelRes float64) (footprint, bool) {
	minC := oct.MinCorner()
	edge := oct.Edge()
	toSensor := sensorPose.Invert()

	var fp footprint
	any := false
	fp.insideImage = true
	for i := 0; i < 8; i++ {
		dx := int32((i >> 2) & 1)
		dy := int32((i >> 1) & 1)
		dz := int32(i & 1)
		corner := toSensor.Transform(r3VectorFromVoxel(minC, edge, dx, dy, dz, voxelRes))
		u, v, d, ok := model.Project(corner)
		if !ok {
			d = corner.Z
		}
		if i == 0 || d < fp.minDepth {
			fp.minDepth = d
		}
		if i == 0 || d > fp.maxDepth {
			fp.maxDepth = d
		}
		if !ok {
			fp.insideImage = false
			continue
		}
		if !any {
			fp.uMin, fp.uMax = u, u
			fp.vMin, fp.vMax = v, v
			any = true
			continue
		}
		if u < fp.uMin {
			fp.uMin = u
		}
		if u > fp.uMax {
			fp.uMax = u
		}
		if v < fp.vMin {
			fp.vMin = v
		}
		if v > fp.vMax {
			fp.vMax = v
		}
	}
	return fp, any
}

// sampleSurfaceBand scans depth within fp's pixel bounding box and returns
// the observed depth range, a variance classification, and whether any
// valid depth sample was found.
func sampleSurfaceBand(depth *sensor.DepthImage, fp footprint) (minD, maxD float64, variance VarianceState, ok bool) {
	uMin, uMax := clampRange(fp.uMin, fp.uMax, depth.Width())
	vMin, vMax := clampRange(fp.vMin, fp.vMax, depth.Height())

	var sum, sumSq float64
	var n int
	first := true
	for v := vMin; v <= vMax; v++ {
		for u := uMin; u <= uMax; u++ {
			d := float64(depth.At(u, v))
			if d <= 0 {
				continue
			}
			if first {
				minD, maxD = d, d
				first = false
			} else {
				if d < minD {
					minD = d
				}
				if d > maxD {
					maxD = d
				}
			}
			sum += d
			sumSq += d * d
			n++
		}
	}
	if n == 0 {
		return 0, 0, Constant, false
	}
	mean := sum / float64(n)
	variance2 := sumSq/float64(n) - mean*mean
	if variance2 < 0 {
		variance2 = 0
	}
	state := Constant
	if math.Sqrt(variance2) > varianceGradientThreshold {
		state = Gradient
	}
	return minD, maxD, state, true
}

// varianceGradientThreshold is the standard deviation, in metres, above
// which a footprint's depth samples are classified Gradient rather than
// Constant (spec.md §4.2 leaves the exact threshold unspecified; chosen to
// be comfortably above typical sensor depth noise and well below a
// silhouette step).
const varianceGradientThreshold = 0.05

// r3VectorFromVoxel returns the world-space position of corner (dx,dy,dz)
// (each 0 or 1) of the voxel-space box [minC, minC+edge).
func r3VectorFromVoxel(minC [3]int32, edge int32, dx, dy, dz int32, voxelRes float64) r3.Vector {
	return r3.Vector{
		X: float64(minC[0]+dx*edge) * voxelRes,
		Y: float64(minC[1]+dy*edge) * voxelRes,
		Z: float64(minC[2]+dz*edge) * voxelRes,
	}
}

func clampRange(lo, hi, size int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > size-1 {
		hi = size - 1
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}
