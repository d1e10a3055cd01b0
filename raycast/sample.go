// Package raycast implements spec.md §4.6's two ray-casters: an occupancy
// cast with empty-space skipping and a TSDF cast over a block-ray iterator,
// plus the gradient-based normal both share.
//
// Grounded on octree/basic.go's At traversal (descend while the queried
// point could be in the current octant) for locating the block under a
// sample point, and rimage/transform/pinhole_camera_parameters.go's
// neighbor-lookup style (NearestNeighborColor/NearestNeighborDepth),
// generalized from 2D bilinear to 3D trilinear field interpolation.
package raycast

import (
	"math"

	"github.com/golang/geo/r3"

	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/voxel"
)

// Sample reads the field value at a world-space point, trilinearly
// interpolated across the voxel grid of the block it falls in. observed
// reports whether every corner used in the interpolation had Observed set;
// scale is the resolution scale the corners came from (a MultiResBlock's
// current scale, or 0 for a SingleResBlock). ok is false if the point falls
// outside any allocated block.
//
// Interpolation is clamped at a block's own edges rather than reaching into
// a neighbouring block: resolving the neighbour set across blocks of
// different scales (spec.md §4.7's dual marching cubes does this for mesh
// corners) is not needed for ray marching, where the step size is already
// smaller than a block, so the clamp only ever softens samples within
// res/2 of a block boundary.
func Sample(tree *octree.Tree, worldPoint r3.Vector) (value float32, observed bool, scale int, ok bool) {
	cfg := tree.Config()
	v := worldToVoxel(worldPoint, cfg.Res)
	if !tree.Contains(v) {
		return 0, false, 0, false
	}
	r, isBlock := tree.Locate(v)
	if !isBlock {
		return 0, false, 0, false
	}
	blk := tree.GetBlock(r)
	switch b := blk.(type) {
	case *octree.MultiResBlock:
		s := b.CurrentScale()
		edgeCells := int(b.ScaleEdge(s))
		cellVoxels := b.Edge() / b.ScaleEdge(s)
		val, obs := trilinearRead(b.MinCorner(), cellVoxels, edgeCells, cfg.Res, worldPoint,
			func(x, y, z int) voxel.Record { return b.AtScale(s, x, y, z) })
		return val, obs, s, true
	case *octree.SingleResBlock:
		edgeCells := int(b.Edge())
		val, obs := trilinearRead(b.MinCorner(), 1, edgeCells, cfg.Res, worldPoint, b.At)
		return val, obs, 0, true
	default:
		return 0, false, 0, false
	}
}

// Normal estimates the field gradient at worldPoint by central differences
// of Sample, step res/2 on each axis (spec.md §4.6: "Normals are the
// gradient of the field at the hit point"). ok is false (an "invalid
// normal" sentinel) if any of the six surrounding samples falls outside
// allocated space.
func Normal(tree *octree.Tree, worldPoint r3.Vector, res float64) (n r3.Vector, ok bool) {
	h := res / 2
	axes := [3]r3.Vector{{X: h}, {Y: h}, {Z: h}}
	var g [3]float64
	for i, a := range axes {
		plus, obsP, _, okP := Sample(tree, worldPoint.Add(a))
		minus, obsM, _, okM := Sample(tree, worldPoint.Sub(a))
		if !okP || !okM || !obsP || !obsM {
			return r3.Vector{}, false
		}
		g[i] = (float64(plus) - float64(minus)) / res
	}
	grad := r3.Vector{X: g[0], Y: g[1], Z: g[2]}
	if math.IsNaN(grad.Norm()) || math.IsInf(grad.Norm(), 0) {
		return r3.Vector{}, false
	}
	return grad, true
}

func worldToVoxel(p r3.Vector, res float64) [3]int32 {
	return [3]int32{
		int32(math.Floor(p.X / res)),
		int32(math.Floor(p.Y / res)),
		int32(math.Floor(p.Z / res)),
	}
}

// trilinearRead interpolates the field value across the eight cell centers
// surrounding worldPoint within one block, where cellVoxels is how many
// finest-scale voxels each cell spans and edgeCells is the grid's edge
// length in cells. Coordinates outside [0, edgeCells) are clamped to the
// nearest valid cell rather than extrapolated.
func trilinearRead(minCorner [3]int32, cellVoxels int32, edgeCells int, res float64, worldPoint r3.Vector, at func(x, y, z int) voxel.Record) (float32, bool) {
	p := [3]float64{worldPoint.X, worldPoint.Y, worldPoint.Z}
	mc := [3]int32{minCorner[0], minCorner[1], minCorner[2]}

	var base [3]int
	var frac [3]float64
	for i := 0; i < 3; i++ {
		localVoxel := p[i]/res - float64(mc[i])
		u := localVoxel/float64(cellVoxels) - 0.5
		b := int(math.Floor(u))
		f := u - float64(b)
		switch {
		case edgeCells < 2:
			b, f = 0, 0
		case b < 0:
			b, f = 0, 0
		case b > edgeCells-2:
			b, f = edgeCells-2, 1
		}
		base[i], frac[i] = b, f
	}

	var corners [8]voxel.Record
	idx := 0
	for dx := 0; dx < 2; dx++ {
		for dy := 0; dy < 2; dy++ {
			for dz := 0; dz < 2; dz++ {
				x := clampInt(base[0]+dx, 0, edgeCells-1)
				y := clampInt(base[1]+dy, 0, edgeCells-1)
				z := clampInt(base[2]+dz, 0, edgeCells-1)
				corners[idx] = at(x, y, z)
				idx++
			}
		}
	}
	return interpolateField(corners, frac), allObserved(corners[:])
}

func interpolateField(c [8]voxel.Record, frac [3]float64) float32 {
	c00 := lerp(c[0].Field, c[1].Field, frac[2])
	c01 := lerp(c[2].Field, c[3].Field, frac[2])
	c10 := lerp(c[4].Field, c[5].Field, frac[2])
	c11 := lerp(c[6].Field, c[7].Field, frac[2])
	c0 := lerp(c00, c01, frac[1])
	c1 := lerp(c10, c11, frac[1])
	return lerp(c0, c1, frac[0])
}

func lerp(a, b float32, t float64) float32 {
	return float32(float64(a) + (float64(b)-float64(a))*t)
}

func allObserved(records []voxel.Record) bool {
	for _, r := range records {
		if !r.Observed {
			return false
		}
	}
	return true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
