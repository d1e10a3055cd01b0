package propagate

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/volumap/logging"
	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/voxel"
)

// TestRootUpIdempotent asserts spec.md §8's L1 law: running root-up
// propagation twice in a row with no intervening update is a no-op on
// every node's data, because the second pass finds every ancestor's
// timestamp already equal to the frame id and skips it.
func TestRootUpIdempotent(t *testing.T) {
	cfg := voxel.Config{
		Kind:       voxel.Occupancy,
		Resolution: voxel.MultiRes,
		Res:        1.0,
		BlockEdge:  2,
		MapSide:    4,
		LogOddMin:  -5.5,
		LogOddMax:  5.5,
		MaxWeight:  100,
	}
	tree, err := octree.NewTree(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	const ts = uint64(1)
	blockRef, _, err := tree.Allocate(tree.Root(), 0, ts)
	test.That(t, err, test.ShouldBeNil)

	blk, ok := tree.GetBlock(blockRef).(*octree.MultiResBlock)
	test.That(t, ok, test.ShouldBeTrue)
	blk.SetAtScale(blk.MaxScale(), 0, 0, 0, voxel.Record{Field: -2, Weight: 5, Observed: true})
	blk.SetMinAtScale(blk.MaxScale(), 0, 0, 0, voxel.Record{Field: -3, Weight: 5, Observed: true})
	blk.SetMaxAtScale(blk.MaxScale(), 0, 0, 0, voxel.Record{Field: -1, Weight: 5, Observed: true})

	RootUp(tree, []octree.Ref{blockRef}, ts)

	root := tree.GetNode(tree.Root())
	test.That(t, root.Timestamp(), test.ShouldEqual, ts)
	dataAfterFirst := root.Data()
	minAfterFirst, maxAfterFirst, hasSummariesAfterFirst := root.Summaries()

	RootUp(tree, []octree.Ref{blockRef}, ts)

	test.That(t, root.Data(), test.ShouldResemble, dataAfterFirst)
	min2, max2, hasSummaries2 := root.Summaries()
	test.That(t, hasSummaries2, test.ShouldEqual, hasSummariesAfterFirst)
	test.That(t, min2, test.ShouldResemble, minAfterFirst)
	test.That(t, max2, test.ShouldResemble, maxAfterFirst)
}

// TestRootUpFoldsBlockCoarsestCell asserts that a block's contribution to
// its parent node's aggregate comes from its coarsest pyramid cell, not its
// current (possibly finer) scale.
func TestRootUpFoldsBlockCoarsestCell(t *testing.T) {
	cfg := voxel.Config{
		Kind:       voxel.Occupancy,
		Resolution: voxel.MultiRes,
		Res:        1.0,
		BlockEdge:  2,
		MapSide:    4,
		LogOddMin:  -5.5,
		LogOddMax:  5.5,
		MaxWeight:  100,
	}
	tree, err := octree.NewTree(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	const ts = uint64(7)
	blockRef, _, err := tree.Allocate(tree.Root(), 0, ts)
	test.That(t, err, test.ShouldBeNil)
	blk := tree.GetBlock(blockRef).(*octree.MultiResBlock)
	blk.SetAtScale(blk.MaxScale(), 0, 0, 0, voxel.Record{Field: 0.25, Weight: 3, Observed: true})

	RootUp(tree, []octree.Ref{blockRef}, ts)

	root := tree.GetNode(tree.Root())
	test.That(t, root.Data().Field, test.ShouldEqual, float32(0.25))
}
