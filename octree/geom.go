package octree

import "github.com/golang/geo/r3"

// Box is an axis-aligned bounding box in world coordinates, grounded on
// go.viam.com/rdk/spatialmath's box-geometry pattern (min/max corner pair)
// but kept local to avoid the octree->spatial import this package doesn't
// otherwise need.
type Box struct {
	Min, Max r3.Vector
}

// Contains reports whether p lies within the box, inclusive of its faces.
func (b Box) Contains(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Union returns the smallest box containing both b and other.
func (b Box) Union(other Box) Box {
	return Box{
		Min: r3.Vector{X: min(b.Min.X, other.Min.X), Y: min(b.Min.Y, other.Min.Y), Z: min(b.Min.Z, other.Min.Z)},
		Max: r3.Vector{X: max(b.Max.X, other.Max.X), Y: max(b.Max.Y, other.Max.Y), Z: max(b.Max.Z, other.Max.Z)},
	}
}

// Center returns the box's midpoint.
func (b Box) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// ClipRay intersects a ray (origin + t*dir, t in [tMin, tMax]) against the
// box using the slab method, returning the clipped [tMin, tMax] and whether
// the ray hits the box at all. Grounded on the ray/AABB slab test used by
// original_source's octree ray-casting traversal.
func (b Box) ClipRay(origin, dir r3.Vector, tMin, tMax float64) (float64, float64, bool) {
	for axis := 0; axis < 3; axis++ {
		o, d, lo, hi := component(origin, axis), component(dir, axis), component(b.Min, axis), component(b.Max, axis)
		if d == 0 {
			if o < lo || o > hi {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / d
		t0 := (lo - o) * inv
		t1 := (hi - o) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tMin {
			tMin = t0
		}
		if t1 < tMax {
			tMax = t1
		}
		if tMin > tMax {
			return 0, 0, false
		}
	}
	return tMin, tMax, true
}

func component(v r3.Vector, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
