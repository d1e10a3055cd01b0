package mesh

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/volumap/logging"
	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/voxel"
)

// buildDualCube mirrors buildSingleCube but for a MultiResBlock, driving its
// scale-switch state machine down to scale 0 (its finest, edge-2 level) per
// propagate/blockup_test.go's pattern, so DualMarchingCubes has an allocated
// scale to mesh against.
func buildDualCube(t *testing.T) *octree.Tree {
	t.Helper()
	cfg := voxel.Config{
		Kind:                     voxel.TSDF,
		Resolution:               voxel.MultiRes,
		Res:                      1.0,
		BlockEdge:                2,
		MapSide:                  4,
		LogOddMin:                -5.5,
		LogOddMax:                5.5,
		MaxWeight:                100,
		TruncationBoundaryFactor: 8,
	}
	tree, err := octree.NewTree(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	blockRef, _, err := tree.Allocate(tree.Root(), 7, 1)
	test.That(t, err, test.ShouldBeNil)
	blk, ok := tree.GetBlock(blockRef).(*octree.MultiResBlock)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, blk.MaxScale(), test.ShouldEqual, 1)

	seed := func(fromEdge int32, from []voxel.Record, toScale int) (int32, []voxel.Record) {
		return 2, make([]voxel.Record, 8)
	}
	blk.BeginScaleSwitch(0, seed)
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			blk.SetBufferAt(x, y, 0, voxel.Record{Field: -0.5, Weight: 1, Observed: true})
			blk.SetBufferAt(x, y, 1, voxel.Record{Field: 0.5, Weight: 1, Observed: true})
		}
	}
	for i := 0; i < 20; i++ {
		blk.RecordBufferIntegration(true)
	}
	test.That(t, blk.ReadyToSwitch(blk.ScaleObservedVolume(blk.CurrentScale())), test.ShouldBeTrue)
	blk.CommitSwitch()
	test.That(t, blk.CurrentScale(), test.ShouldEqual, 0)

	return tree
}

func TestDualMarchingCubesFindsZeroPlane(t *testing.T) {
	tree := buildDualCube(t)

	tris := DualMarchingCubes(tree)
	test.That(t, len(tris) > 0, test.ShouldBeTrue)
	for _, tri := range tris {
		test.That(t, tri.Scale, test.ShouldEqual, 0)
		for _, v := range tri.V {
			test.That(t, v.Z, test.ShouldAlmostEqual, 0.5, 1e-6)
		}
	}
}

func TestDualMarchingCubesEmptyTreeYieldsNoTriangles(t *testing.T) {
	cfg := voxel.Config{
		Kind:                     voxel.TSDF,
		Resolution:               voxel.MultiRes,
		Res:                      1.0,
		BlockEdge:                2,
		MapSide:                  4,
		LogOddMin:                -5.5,
		LogOddMax:                5.5,
		MaxWeight:                100,
		TruncationBoundaryFactor: 8,
	}
	tree, err := octree.NewTree(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	tris := DualMarchingCubes(tree)
	test.That(t, len(tris), test.ShouldEqual, 0)
}
