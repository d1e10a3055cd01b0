// Package octree implements the map's core data structure (spec.md §4.1): a
// hierarchical octree of fixed-size voxel blocks with a memory-pool allocator,
// structural invariants I1-I7, and five iterator variants.
//
// Grounded on go.viam.com/rdk/octree/basic.go (basicOctree/basicOctreeNode's
// recursive descent, child-slot-by-index convention) and
// go.viam.com/rdk/pointcloud/collision_octree.go's internalNode/leafNodeFilled/
// leafNodeEmpty switch style. Parent back-pointers are arena handles rather
// than the teacher's *basicOctree child pointers, per Design Notes §9: "use an
// arena of octants indexed by integer handles; the back-pointer is a handle,
// not a lifetime-coupled reference."
package octree

// handle is an index into a Tree's node or block arena. The zero handle is
// reserved as "no parent" (only the root has it) and "no child" (an
// unallocated slot).
type handle uint32

const nilHandle handle = 0

// kind distinguishes a handle's arena.
type kind uint8

const (
	kindNode kind = iota
	kindBlock
)

// ref packs a handle with which arena it indexes, so a single field
// (Octant.parent, Node.children[i]) can point into either arena.
type ref struct {
	h handle
	k kind
	// valid is false for an unallocated slot. Handle 0 is a reserved
	// sentinel slot in each arena (the root lives at node handle 1), so a
	// zero handle never names a live octant.
	valid bool
}

func (r ref) isNode() bool  { return r.valid && r.k == kindNode }
func (r ref) isBlock() bool { return r.valid && r.k == kindBlock }

// IsNode reports whether r refers to an allocated interior node.
func (r ref) IsNode() bool { return r.isNode() }

// IsBlock reports whether r refers to an allocated leaf block.
func (r ref) IsBlock() bool { return r.isBlock() }

// Valid reports whether r refers to any allocated octant.
func (r ref) Valid() bool { return r.valid }

// Equal reports whether r and other name the same octant.
func (r ref) Equal(other ref) bool { return r == other }

// Ref is the exported spelling of ref: callers outside this package can
// hold, slice and struct-field a reference returned by Tree's methods
// without gaining access to its internals, matching the opaque-handle
// contract Design Notes §9 asks for.
type Ref = ref

