package octree

import "go.viam.com/volumap/voxel"

// Node is an interior octant with up to eight children (spec.md §3
// "Node"). Grounded on go.viam.com/rdk/octree/basic.go's basicOctreeNode,
// generalized from "one point or eight children" to "one representative
// data record, plus min/max summaries for occupancy maps."
type Node struct {
	octantHeader

	children [8]ref
	mask     uint8 // bit i set iff children[i] is populated (invariant I2)

	// data seeds newly allocated children (spec.md §4.1 allocation rule)
	// and is this node's own representative value once it becomes a leaf
	// summary after pruning (spec.md §4.4 "Pruning").
	data voxel.Record

	// minData/maxData are occupancy aggregate summaries (spec.md §3
	// invariant I3). Left zero-valued for TSDF trees, which have no use
	// for them.
	minData, maxData voxel.Record
	hasSummaries      bool
}

// Mask returns the populated-children bitmask (invariant I2).
func (n *Node) Mask() uint8 { return n.mask }

// IsBlock always returns false for a Node.
func (n *Node) IsBlock() bool { return false }

// Data returns the node's representative value.
func (n *Node) Data() voxel.Record { return n.data }

// SetData sets the node's representative value.
func (n *Node) SetData(d voxel.Record) { n.data = d }

// Summaries returns the node's min/max occupancy aggregates and whether
// they have been computed at least once.
func (n *Node) Summaries() (min, max voxel.Record, ok bool) {
	return n.minData, n.maxData, n.hasSummaries
}

// SetSummaries records the node's min/max occupancy aggregates (invariant
// I3), called by the propagator.
func (n *Node) SetSummaries(min, max voxel.Record) {
	n.minData, n.maxData = min, max
	n.hasSummaries = true
}

// ChildRef returns the reference stored in slot i (0-7), which may be the
// zero (invalid) ref if that slot is unpopulated.
func (n *Node) ChildRef(i int) ref { return n.children[i] }

// HasChild reports whether slot i is populated, consistent with Mask
// (invariant P1 in spec.md §8).
func (n *Node) HasChild(i int) bool { return n.mask&(1<<uint(i)) != 0 }
