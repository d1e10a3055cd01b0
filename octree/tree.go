package octree

import (
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/volumap/logging"
	"go.viam.com/volumap/voxel"
	"go.viam.com/volumap/volumaperr"
)

// FrustumTester is the subset of a sensor model the InFrustum iterator
// needs. Defined locally, rather than imported from the sensor package, so
// octree has no dependency on sensor (spec.md §4.1's iterator list; Design
// Notes §9 calls out this cut explicitly to keep the dependency graph a
// DAG rooted at volumap).
type FrustumTester interface {
	SphereInFrustum(center r3.Vector, radius float64) bool
}

// Tree is the map's core data structure: a single-root octree of Nodes and
// Blocks held in two arenas, indexed by handle (spec.md §4.1). All
// structural mutation (Allocate, AllocateAllChildren, DeleteChildren) holds
// mu; the read-only traversal and iterator methods do not, matching the
// single-control-flow-per-frame concurrency model where only the
// allocation phase touches structure (spec.md §5).
//
// Grounded on go.viam.com/rdk/octree/basic.go's basicOctree (root
// octantHeader plus recursive children) and pointcloud/collision_octree.go's
// arena-of-nodes style, adapted from *T child pointers to handle-indexed
// arenas per Design Notes §9.
type Tree struct {
	mu     sync.Mutex
	cfg    voxel.Config
	logger logging.Logger

	nodes      []Node
	blocks     []Block
	freeNodes  []handle
	freeBlocks []handle

	root ref
}

// NewTree builds an empty tree whose root spans [-MapSide/2, MapSide/2)^3
// in voxel-space coordinates, per cfg.
func NewTree(cfg voxel.Config, logger logging.Logger) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid voxel config")
	}
	t := &Tree{cfg: cfg, logger: logger}
	half := int32(cfg.MapSide / 2)
	rootMin := [3]int32{-half, -half, -half}
	rootEdge := int32(cfg.MapSide)

	t.nodes = append(t.nodes, Node{}) // handle 0 reserved
	t.blocks = append(t.blocks, nil)

	rootHandle := handle(len(t.nodes))
	t.nodes = append(t.nodes, Node{octantHeader: octantHeader{minCorner: rootMin, edge: rootEdge}})
	t.root = ref{h: rootHandle, k: kindNode, valid: true}
	return t, nil
}

// Root returns a reference to the tree's root node.
func (t *Tree) Root() ref { return t.root }

// GetNode dereferences a node handle. Panics if r does not refer to a node;
// callers are expected to check r.isNode() (or use Deref) first, exactly
// like an out-of-bounds slice index would panic on misuse.
func (t *Tree) GetNode(r ref) *Node {
	return &t.nodes[r.h]
}

// GetBlock dereferences a block handle.
func (t *Tree) GetBlock(r ref) Block {
	return t.blocks[r.h]
}

// Deref returns the Octant a ref points to, regardless of which arena.
func (t *Tree) Deref(r ref) (Octant, bool) {
	if !r.valid {
		return nil, false
	}
	if r.k == kindNode {
		return &t.nodes[r.h], true
	}
	return t.blocks[r.h], true
}

// Config returns the tree's voxel configuration.
func (t *Tree) Config() voxel.Config { return t.cfg }

// Allocate creates child childIdx (0-7) of parent if it does not already
// exist, choosing a Node or a leaf Block based on whether the child's edge
// has reached cfg.BlockEdge (spec.md §4.1 allocation rule), seeding new
// octants from the parent's representative data (spec.md §4.1: "a newly
// allocated child inherits its parent's current data value"). Returns the
// child ref and whether it was newly created.
func (t *Tree) Allocate(parent ref, childIdx int, ts uint64) (ref, bool, error) {
	if childIdx < 0 || childIdx > 7 {
		return ref{}, false, errors.Wrapf(volumaperr.ErrInvalidInput, "child index %d out of range", childIdx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if !parent.isNode() {
		return ref{}, false, errors.Wrap(volumaperr.ErrInvalidInput, "allocate: parent is not a node")
	}
	pn := &t.nodes[parent.h]
	if pn.HasChild(childIdx) {
		return pn.children[childIdx], false, nil
	}

	childEdge := pn.edge / 2
	childMin := childMinCorner(pn.minCorner, pn.edge, childIdx)
	seed := pn.data

	var child ref
	var err error
	if childEdge <= int32(t.cfg.BlockEdge) {
		child, err = t.allocateBlockLocked(childMin, childEdge, seed, parent)
	} else {
		child, err = t.allocateNodeLocked(childMin, childEdge, seed, parent)
	}
	if err != nil {
		t.logger.Errorf("allocate child %d of parent: %v", childIdx, err)
		return ref{}, false, err
	}

	pn = &t.nodes[parent.h] // allocateNodeLocked may have grown t.nodes
	pn.children[childIdx] = child
	pn.mask |= 1 << uint(childIdx)
	return child, true, nil
}

// AllocateAllChildren allocates every unallocated child of parent, used
// when a coarse voxel is split by a finer measurement all at once rather
// than lazily one octant at a time.
func (t *Tree) AllocateAllChildren(parent ref, ts uint64) ([8]ref, error) {
	var out [8]ref
	for i := 0; i < 8; i++ {
		r, _, err := t.Allocate(parent, i, ts)
		if err != nil {
			return out, err
		}
		out[i] = r
	}
	return out, nil
}

// totalOctantsLocked counts live nodes and blocks, excluding the two
// reserved handle-0 sentinel slots. Only called while a new arena slot is
// about to be grown, never on a freelist reuse.
func (t *Tree) totalOctantsLocked() int {
	return len(t.nodes) - 1 + len(t.blocks) - 1
}

func (t *Tree) allocateNodeLocked(minCorner [3]int32, edge int32, seed voxel.Record, parent ref) (ref, error) {
	n := Node{octantHeader: octantHeader{minCorner: minCorner, edge: edge, parent: parent}, data: seed}
	if len(t.freeNodes) > 0 {
		h := t.freeNodes[len(t.freeNodes)-1]
		t.freeNodes = t.freeNodes[:len(t.freeNodes)-1]
		t.nodes[h] = n
		return ref{h: h, k: kindNode, valid: true}, nil
	}
	if t.cfg.MaxOctants > 0 && t.totalOctantsLocked() >= t.cfg.MaxOctants {
		return ref{}, errors.Wrapf(volumaperr.ErrResourceExhausted,
			"node pool exhausted at %d octants", t.cfg.MaxOctants)
	}
	h := handle(len(t.nodes))
	t.nodes = append(t.nodes, n)
	return ref{h: h, k: kindNode, valid: true}, nil
}

func (t *Tree) allocateBlockLocked(minCorner [3]int32, edge int32, seed voxel.Record, parent ref) (ref, error) {
	if len(t.freeBlocks) == 0 && t.cfg.MaxOctants > 0 && t.totalOctantsLocked() >= t.cfg.MaxOctants {
		return ref{}, errors.Wrapf(volumaperr.ErrResourceExhausted,
			"block pool exhausted at %d octants", t.cfg.MaxOctants)
	}
	var b Block
	if t.cfg.Resolution == voxel.MultiRes {
		mb := newMultiResBlock(minCorner, edge, t.cfg, seed, t.cfg.MaxScale())
		mb.parent = parent
		b = mb
	} else {
		sb := newSingleResBlock(minCorner, edge, seed)
		sb.parent = parent
		b = sb
	}
	if len(t.freeBlocks) > 0 {
		h := t.freeBlocks[len(t.freeBlocks)-1]
		t.freeBlocks = t.freeBlocks[:len(t.freeBlocks)-1]
		t.blocks[h] = b
		return ref{h: h, k: kindBlock, valid: true}, nil
	}
	h := handle(len(t.blocks))
	t.blocks = append(t.blocks, b)
	return ref{h: h, k: kindBlock, valid: true}, nil
}

// DeleteChildren prunes every child of parent, per spec.md §4.4 (pruning
// collapses a node's children into the node's own representative value
// once their summaries indicate uniform occupancy). The freed handles go
// onto the freelist for reuse by later Allocate calls (Design Notes §9:
// "an arena freelist, not a garbage collector").
func (t *Tree) DeleteChildren(parent ref) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !parent.isNode() {
		return errors.Wrap(volumaperr.ErrInvalidInput, "delete children: parent is not a node")
	}
	pn := &t.nodes[parent.h]
	for i := 0; i < 8; i++ {
		c := pn.children[i]
		if !c.valid {
			continue
		}
		if c.k == kindNode {
			t.freeNodes = append(t.freeNodes, c.h)
		} else {
			t.blocks[c.h] = nil
			t.freeBlocks = append(t.freeBlocks, c.h)
		}
		pn.children[i] = ref{}
	}
	pn.mask = 0
	return nil
}

// Contains reports whether a voxel-space coordinate falls within the
// tree's root bounds.
func (t *Tree) Contains(v [3]int32) bool {
	root := &t.nodes[t.root.h]
	for i := 0; i < 3; i++ {
		if v[i] < root.minCorner[i] || v[i] >= root.minCorner[i]+root.edge {
			return false
		}
	}
	return true
}

// AABB returns the tree's world-space bounding box.
func (t *Tree) AABB() Box {
	root := &t.nodes[t.root.h]
	res := t.cfg.Res
	min := r3.Vector{X: float64(root.minCorner[0]) * res, Y: float64(root.minCorner[1]) * res, Z: float64(root.minCorner[2]) * res}
	edge := float64(root.edge) * res
	return Box{Min: min, Max: min.Add(r3.Vector{X: edge, Y: edge, Z: edge})}
}

// walk performs a pre-order traversal from r, calling visit on every
// octant. visit returns false to skip descending into that octant's
// children (used by InFrustum for early pruning).
func (t *Tree) walk(r ref, visit func(ref, Octant) bool) {
	if !r.valid {
		return
	}
	oct, ok := t.Deref(r)
	if !ok {
		return
	}
	if !visit(r, oct) || r.k != kindNode {
		return
	}
	n := &t.nodes[r.h]
	for i := 0; i < 8; i++ {
		if n.HasChild(i) {
			t.walk(n.children[i], visit)
		}
	}
}

// All returns every octant (nodes and blocks) in pre-order.
func (t *Tree) All() []ref {
	var out []ref
	t.walk(t.root, func(r ref, _ Octant) bool { out = append(out, r); return true })
	return out
}

// Nodes returns every interior node.
func (t *Tree) Nodes() []ref {
	var out []ref
	t.walk(t.root, func(r ref, _ Octant) bool {
		if r.k == kindNode {
			out = append(out, r)
		}
		return true
	})
	return out
}

// Blocks returns every leaf block.
func (t *Tree) Blocks() []ref {
	var out []ref
	t.walk(t.root, func(r ref, _ Octant) bool {
		if r.k == kindBlock {
			out = append(out, r)
		}
		return true
	})
	return out
}

// Leaves is an alias for Blocks: in this architecture every leaf is a
// block, since a node with no children simply has mask == 0 rather than
// existing as a childless "leaf node" (spec.md §3 GLOSSARY "Leaf").
func (t *Tree) Leaves() []ref { return t.Blocks() }

// UpdatedSince returns every octant whose timestamp is at least ts,
// used by the mesher and raycaster to skip unchanged subtrees (spec.md
// §4.1: "an UpdatedSince(ts) iterator that prunes subtrees whose
// timestamp predates ts").
func (t *Tree) UpdatedSince(ts uint64) []ref {
	var out []ref
	t.walk(t.root, func(r ref, oct Octant) bool {
		if oct.Timestamp() < ts {
			return false
		}
		out = append(out, r)
		return true
	})
	return out
}

// InFrustum returns every octant whose bounding sphere passes tester's
// frustum test, pruning subtrees whose bounding sphere fails it entirely
// (spec.md §4.1).
func (t *Tree) InFrustum(tester FrustumTester) []ref {
	res := t.cfg.Res
	var out []ref
	t.walk(t.root, func(r ref, oct Octant) bool {
		center := oct.Center().Mul(res)
		radius := oct.BoundingRadius() * res
		if !tester.SphereInFrustum(center, radius) {
			return false
		}
		out = append(out, r)
		return true
	})
	return out
}

// Locate descends from the root toward voxel-space coordinate v, following
// the child whose half-space contains v at each node, stopping at the
// first block or at the deepest existing node whose child slot for v is
// unallocated. Read-only: used by the ray-caster's empty-space skipping and
// trilinear sampling (spec.md §4.6), which run in the raycast phase after
// structural mutation for the frame has already completed.
func (t *Tree) Locate(v [3]int32) (found ref, isBlock bool) {
	r := t.root
	for {
		if r.k == kindBlock {
			return r, true
		}
		n := &t.nodes[r.h]
		half := n.edge / 2
		bx, by, bz := 0, 0, 0
		if v[0] >= n.minCorner[0]+half {
			bx = 1
		}
		if v[1] >= n.minCorner[1]+half {
			by = 1
		}
		if v[2] >= n.minCorner[2]+half {
			bz = 1
		}
		idx := childIndex(bx, by, bz)
		if !n.HasChild(idx) {
			return r, false
		}
		r = n.children[idx]
	}
}
