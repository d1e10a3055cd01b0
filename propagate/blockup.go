package propagate

import (
	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/voxel"
)

// BlockUp implements spec.md §4.5's per-block propagation: starting at
// block's current scale, aggregate every 2x2x2 octet of children into the
// parent voxel, recursing up to the block's coarsest scale. Called once per
// block touched this frame, after its updater pass and before RootUp.
//
// The recursion aggregates min/max from the children's own min/max arrays,
// not their mean: each level's min/max voxel already summarizes everything
// beneath it (down to the finest observed voxel), so folding mean values in
// here would discard that history. This mirrors the node-level aggregation
// in rootup.go, which folds a child block's coarsest min/max cell rather
// than its mean for the same reason.
func BlockUp(block *octree.MultiResBlock) {
	occupancy := block.Occupancy()
	for s := block.CurrentScale(); s < block.MaxScale(); s++ {
		parentScale := s + 1
		parentEdge := int(block.ScaleEdge(parentScale))
		for px := 0; px < parentEdge; px++ {
			for py := 0; py < parentEdge; py++ {
				for pz := 0; pz < parentEdge; pz++ {
					means := octetAt(block, s, px, py, pz, block.AtScale)
					block.SetAtScale(parentScale, px, py, pz, meanRecord(means))

					if occupancy {
						mins := octetAt(block, s, px, py, pz, block.MinAtScale)
						maxs := octetAt(block, s, px, py, pz, block.MaxAtScale)

						min := pickMin(mins)
						min.Observed = allObserved(mins)
						block.SetMinAtScale(parentScale, px, py, pz, min)

						max := pickMax(maxs)
						max.Observed = allObserved(maxs)
						block.SetMaxAtScale(parentScale, px, py, pz, max)
					}
				}
			}
		}
	}
}

// octetAt reads the eight children of parent cell (px,py,pz) at child scale
// s, using accessor to read whichever of AtScale/MinAtScale/MaxAtScale the
// caller is aggregating.
func octetAt(block *octree.MultiResBlock, s, px, py, pz int, accessor func(scale, x, y, z int) voxel.Record) []voxel.Record {
	children := make([]voxel.Record, 0, 8)
	for dx := 0; dx < 2; dx++ {
		for dy := 0; dy < 2; dy++ {
			for dz := 0; dz < 2; dz++ {
				children = append(children, accessor(s, px*2+dx, py*2+dy, pz*2+dz))
			}
		}
	}
	return children
}
