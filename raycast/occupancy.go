package raycast

import (
	"github.com/golang/geo/r3"

	"go.viam.com/volumap/octree"
)

// surfaceBoundary is the log-odds value spec.md §4.6 calls "confidently
// free" below and the occupancy surface above (get_field(max_data) <= -0.2).
const surfaceBoundary = -0.2

// Hit is a ray-cast result.
type Hit struct {
	Point    r3.Vector
	Scale    int
	Normal   r3.Vector
	NormalOK bool
}

// CastOccupancy implements spec.md §4.6's occupancy ray-cast: clip the ray
// against the map AABB, skip empty space using coarse max_data summaries,
// then search for the first positive surface_boundary crossing by stepping
// at res/2 and trilinearly interpolating across the crossing.
func CastOccupancy(tree *octree.Tree, origin, dir r3.Vector) (Hit, bool) {
	box := tree.AABB()
	tMin, tMax, hit := box.ClipRay(origin, dir, 0, 1e9)
	if !hit {
		return Hit{}, false
	}
	t := skipEmptySpace(tree, origin, dir, tMin, tMax)
	if t >= tMax {
		return Hit{}, false
	}
	return surfaceSearch(tree, origin, dir, t, tMax)
}

// skipEmptySpace advances t past any run of octants whose coarse summary
// proves confident emptiness, refining scale by scale down to scale 2 per
// block and stepping whole-octant spans through unallocated regions (which
// carry no summary to test, so they are crossed at the octant's own size
// rather than the voxel-by-voxel stride surfaceSearch uses).
func skipEmptySpace(tree *octree.Tree, origin, dir r3.Vector, t, tMax float64) float64 {
	cfg := tree.Config()
	startScale := cfg.MaxScale() - 1
	if startScale > 7 {
		startScale = 7
	}
	for t < tMax {
		p := origin.Add(dir.Mul(t))
		v := worldToVoxel(p, cfg.Res)
		if !tree.Contains(v) {
			return tMax
		}
		r, isBlock := tree.Locate(v)
		oct, ok := tree.Deref(r)
		if !ok {
			return tMax
		}
		if !isBlock {
			far, advanced := skipBox(octantBox(oct, cfg.Res), origin, dir, t, tMax, cfg.Res)
			if !advanced {
				return t
			}
			t = far
			continue
		}
		mb, ok := tree.GetBlock(r).(*octree.MultiResBlock)
		if !ok || !mb.Occupancy() {
			return t
		}
		scale := startScale
		if scale > mb.MaxScale() {
			scale = mb.MaxScale()
		}
		advanced := false
		for ; scale >= 2; scale-- {
			if !mb.ScaleAllocated(scale) {
				continue
			}
			cellVoxels := mb.Edge() / mb.ScaleEdge(scale)
			cx, cy, cz := cellCoord(mb, v, cellVoxels)
			max := mb.MaxAtScale(scale, cx, cy, cz)
			if !max.Observed || float64(max.Field) > surfaceBoundary {
				continue
			}
			far, ok := skipBox(cellBox(mb, cellVoxels, cx, cy, cz, cfg.Res), origin, dir, t, tMax, cfg.Res)
			if !ok {
				return tMax
			}
			t = far
			advanced = true
			break
		}
		if !advanced {
			return t
		}
	}
	return t
}

// skipBox advances the ray to box's far face plus half a voxel, per spec.md
// §4.6's "advance the ray to the far face of the current node and move one
// step further".
func skipBox(box octree.Box, origin, dir r3.Vector, t, tMax, res float64) (float64, bool) {
	_, far, hit := box.ClipRay(origin, dir, t, tMax)
	if !hit {
		return tMax, false
	}
	return far + res*0.5, true
}

func octantBox(oct octree.Octant, res float64) octree.Box {
	mc := oct.MinCorner()
	edge := float64(oct.Edge()) * res
	min := r3.Vector{X: float64(mc[0]) * res, Y: float64(mc[1]) * res, Z: float64(mc[2]) * res}
	return octree.Box{Min: min, Max: min.Add(r3.Vector{X: edge, Y: edge, Z: edge})}
}

func cellCoord(mb *octree.MultiResBlock, v [3]int32, cellVoxels int32) (int, int, int) {
	mc := mb.MinCorner()
	cx := int((v[0] - mc[0]) / cellVoxels)
	cy := int((v[1] - mc[1]) / cellVoxels)
	cz := int((v[2] - mc[2]) / cellVoxels)
	return cx, cy, cz
}

func cellBox(mb *octree.MultiResBlock, cellVoxels int32, cx, cy, cz int, res float64) octree.Box {
	mc := mb.MinCorner()
	minVoxel := [3]int32{
		mc[0] + int32(cx)*cellVoxels,
		mc[1] + int32(cy)*cellVoxels,
		mc[2] + int32(cz)*cellVoxels,
	}
	min := r3.Vector{X: float64(minVoxel[0]) * res, Y: float64(minVoxel[1]) * res, Z: float64(minVoxel[2]) * res}
	edge := float64(cellVoxels) * res
	return octree.Box{Min: min, Max: min.Add(r3.Vector{X: edge, Y: edge, Z: edge})}
}

// surfaceSearch steps at res/2 looking for the first sample past
// surfaceBoundary, then linearly interpolates t between the last two
// samples for the crossing point.
func surfaceSearch(tree *octree.Tree, origin, dir r3.Vector, t, tMax float64) (Hit, bool) {
	cfg := tree.Config()
	step := cfg.Res / 2

	var prevT float64
	var prevVal float32
	havePrev := false

	for ; t <= tMax; t += step {
		p := origin.Add(dir.Mul(t))
		val, observed, scale, ok := Sample(tree, p)
		if !ok || !observed {
			havePrev = false
			continue
		}
		if havePrev && float64(prevVal) <= surfaceBoundary && float64(val) > surfaceBoundary {
			crossT := interpolateCrossing(prevT, float64(prevVal), t, float64(val))
			pW := origin.Add(dir.Mul(crossT))
			n, nok := Normal(tree, pW, cfg.Res)
			return Hit{Point: pW, Scale: scale, Normal: n, NormalOK: nok}, true
		}
		prevT, prevVal, havePrev = t, val, true
	}
	return Hit{}, false
}

func interpolateCrossing(t0, v0, t1, v1 float64) float64 {
	if v1 == v0 {
		return t0
	}
	frac := (surfaceBoundary - v0) / (v1 - v0)
	return t0 + frac*(t1-t0)
}
