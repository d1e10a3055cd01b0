package octree

import "github.com/golang/geo/r3"

// octantHeader is the field set common to every Node and Block (spec.md §3's
// "Octant (abstract)"). Embedded, never referenced through an interface
// method table on the hot path, so allocation and traversal stay allocation-
// and vtable-cheap.
type octantHeader struct {
	minCorner [3]int32 // voxel-space minimum corner
	edge      int32    // edge length in voxels, power of two
	parent    ref      // nilHandle only at the root
	timestamp uint64   // last frame that modified any descendant
}

// Octant is satisfied by *Node and both Block implementations. It exists so
// iterators can walk a mixed node/block tree without a type switch at every
// step; the type switch happens once, at the leaf/interior boundary.
type Octant interface {
	// MinCorner returns the octant's minimum voxel-space corner.
	MinCorner() [3]int32
	// Edge returns the octant's edge length in voxels.
	Edge() int32
	// Timestamp returns the frame id of the last modification to this
	// octant or any descendant.
	Timestamp() uint64
	// IsBlock reports whether this octant is a leaf block (true) or an
	// interior node (false).
	IsBlock() bool
	// Center returns the octant's centre in voxel-space coordinates.
	Center() r3.Vector
	// BoundingRadius returns the radius of the sphere circumscribing the
	// octant, in voxel units.
	BoundingRadius() float64
	// Parent returns a reference to this octant's parent node, or an
	// invalid ref at the root (spec.md §4.5: root-up propagation "ascends
	// parent-by-parent... terminates at the root").
	Parent() Ref
}

func (h *octantHeader) MinCorner() [3]int32 { return h.minCorner }
func (h *octantHeader) Edge() int32         { return h.edge }
func (h *octantHeader) Timestamp() uint64   { return h.timestamp }
func (h *octantHeader) Parent() Ref         { return h.parent }

// Touch stamps this octant with the current frame id, marking it modified
// for UpdatedSince and the propagator's idempotency check (spec.md §4.5:
// "idempotent via timestamp-equals-frame-id check").
func (h *octantHeader) Touch(ts uint64) { h.timestamp = ts }

// Center returns the octant's centre in voxel-space coordinates.
func (h *octantHeader) Center() r3.Vector {
	half := float64(h.edge) / 2
	return r3.Vector{
		X: float64(h.minCorner[0]) + half,
		Y: float64(h.minCorner[1]) + half,
		Z: float64(h.minCorner[2]) + half,
	}
}

// BoundingRadius returns the radius of the sphere circumscribing the octant,
// used by the frustum-culling iterator (spec.md §4.1: "ignores octants whose
// bounding sphere fails the sensor's frustum test").
func (h *octantHeader) BoundingRadius() float64 {
	return float64(h.edge) * 0.8660254037844387 // sqrt(3)/2
}

// childIndex returns the 0-7 slot a point at the given relative bit
// position occupies, per spec.md §3: "child index = 4*x + 2*y + z relative
// bit."
func childIndex(x, y, z int) int {
	return 4*x + 2*y + z
}

// childMinCorner returns the minimum corner of child childIdx of a parent
// with the given minimum corner and edge.
func childMinCorner(parentMin [3]int32, parentEdge int32, childIdx int) [3]int32 {
	half := parentEdge / 2
	return [3]int32{
		parentMin[0] + half*int32((childIdx>>2)&1),
		parentMin[1] + half*int32((childIdx>>1)&1),
		parentMin[2] + half*int32(childIdx&1),
	}
}
