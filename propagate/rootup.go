package propagate

import (
	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/voxel"
)

// RootUp implements spec.md §4.5's root-up propagation: starting from the
// set of blocks touched this frame, ascend parent-by-parent, re-aggregating
// each parent from its eight children (block-or-node) and stamping its
// timestamp, until the root is reached. A node whose timestamp already
// equals ts is skipped, making repeated ascents into the same parent from
// different children (and repeated calls with no intervening update)
// idempotent — this is what keeps invariants I3 and I5.
func RootUp(tree *octree.Tree, touchedBlocks []octree.Ref, ts uint64) {
	frontier := make(map[octree.Ref]struct{}, len(touchedBlocks))
	for _, r := range touchedBlocks {
		frontier[r] = struct{}{}
	}
	for len(frontier) > 0 {
		next := make(map[octree.Ref]struct{})
		for r := range frontier {
			oct, ok := tree.Deref(r)
			if !ok {
				continue
			}
			parent := oct.Parent()
			if !parent.Valid() {
				continue // root has no parent
			}
			pn := tree.GetNode(parent)
			if pn.Timestamp() == ts {
				continue
			}
			aggregateNode(tree, pn)
			pn.Touch(ts)
			maybePrune(tree, parent, pn)
			next[parent] = struct{}{}
		}
		frontier = next
	}
}

// representative returns the value an octant contributes to its parent's
// aggregate: a Node contributes its own data/summaries directly; a
// MultiResBlock contributes its coarsest pyramid cell's mean (and min/max,
// for occupancy blocks), already folded up from every finer voxel by
// BlockUp; a SingleResBlock has no pyramid, so its contribution is the mean
// of its own flat voxel grid, computed on the spot.
func representative(tree *octree.Tree, r octree.Ref) (mean, min, max voxel.Record, hasSummaries bool) {
	oct, ok := tree.Deref(r)
	if !ok {
		return voxel.Zero, voxel.Zero, voxel.Zero, false
	}
	switch o := oct.(type) {
	case *octree.Node:
		mean = o.Data()
		min, max, hasSummaries = o.Summaries()
		return mean, min, max, hasSummaries
	case *octree.MultiResBlock:
		top := o.MaxScale()
		mean = o.AtScale(top, 0, 0, 0)
		if o.Occupancy() {
			min = o.MinAtScale(top, 0, 0, 0)
			max = o.MaxAtScale(top, 0, 0, 0)
			hasSummaries = true
		}
		return mean, min, max, hasSummaries
	case *octree.SingleResBlock:
		mean = meanOfSingleRes(o)
		return mean, voxel.Zero, voxel.Zero, false
	default:
		return voxel.Zero, voxel.Zero, voxel.Zero, false
	}
}

func meanOfSingleRes(b *octree.SingleResBlock) voxel.Record {
	return meanRecord(b.Voxels())
}

// aggregateNode re-aggregates node n from its populated children, per
// spec.md §4.5. Unlike BlockUp's fixed 2x2x2 octet, a node may have fewer
// than eight populated children (invariant I2 allows sparse occupancy); the
// "all eight children observed" rule for min/max is interpreted here as
// "all populated children observed," since an unpopulated slot has no
// voxel data to be unobserved about.
func aggregateNode(tree *octree.Tree, n *octree.Node) {
	var means, mins, maxs []voxel.Record
	haveSummaries := false
	for i := 0; i < 8; i++ {
		if !n.HasChild(i) {
			continue
		}
		mean, min, max, hasSummaries := representative(tree, n.ChildRef(i))
		means = append(means, mean)
		if hasSummaries {
			mins = append(mins, min)
			maxs = append(maxs, max)
			haveSummaries = true
		}
	}
	if len(means) == 0 {
		return
	}
	n.SetData(meanRecord(means))
	if haveSummaries {
		min := pickMin(mins)
		min.Observed = allObserved(mins)
		max := pickMax(maxs)
		max.Observed = allObserved(maxs)
		n.SetSummaries(min, max)
	}
}
