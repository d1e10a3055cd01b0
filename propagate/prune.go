package propagate

import (
	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/voxel"
)

// maybePrune implements spec.md §4.4's pruning rule, applied once per node
// immediately after its aggregate is recomputed: a node whose max_data is
// observed and confidently free across its whole subtree collapses its
// children and stands in as a leaf summary.
//
// The spec's threshold reads "max_data is observed AND o*w <= 0.95 *
// log_odd_min"; w (the max voxel's weight) does not otherwise gate an
// occupancy threshold anywhere else in the spec, so it is read here as
// max_data's field value o alone against 0.95*log_odd_min, an Open Question
// decision recorded in DESIGN.md rather than a literal transcription.
func maybePrune(tree *octree.Tree, ref octree.Ref, n *octree.Node) {
	_, max, hasSummaries := n.Summaries()
	if !hasSummaries || !max.Observed {
		return
	}
	if float64(max.Field) > 0.95*tree.Config().LogOddMin {
		return
	}
	if err := tree.DeleteChildren(ref); err != nil {
		return
	}
	n.SetData(voxel.Record{Field: max.Field, Weight: max.Weight, Observed: true})
}
