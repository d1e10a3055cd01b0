package fuse

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/volumap/logging"
	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/spatial"
	"go.viam.com/volumap/voxel"
)

func TestOccupancySampleSaturatesFarBelowTheSurface(t *testing.T) {
	sample, ok := occupancySample(-10, 0.1, 0.02, -5.5, 5.5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, sample, test.ShouldEqual, -5.5)
}

func TestOccupancySampleHasNoUpdateBeyondTau(t *testing.T) {
	_, ok := occupancySample(1.0, 0.1, 0.02, -5.5, 5.5)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestFuseOccupancyClampsToConfiguredBoundsAndTracksNewlyObserved(t *testing.T) {
	rec := voxel.Record{Field: 5.4, Weight: 3, Observed: true}
	updated, newlyObserved := fuseOccupancy(rec, 1.0, 100, -5.5, 5.5)
	test.That(t, newlyObserved, test.ShouldBeFalse)
	test.That(t, updated.Field, test.ShouldEqual, float32(5.5))
	test.That(t, updated.Weight, test.ShouldEqual, uint16(4))

	fresh := voxel.Record{}
	_, newlyObserved = fuseOccupancy(fresh, -1.0, 100, -5.5, 5.5)
	test.That(t, newlyObserved, test.ShouldBeTrue)
}

func occupancyTestTreeAndBlock(t *testing.T) (*octree.Tree, octree.Ref) {
	t.Helper()
	cfg := voxel.Config{
		Kind:                     voxel.Occupancy,
		Resolution:               voxel.MultiRes,
		Res:                      0.1,
		BlockEdge:                4,
		MapSide:                  8,
		LogOddMin:                -5.5,
		LogOddMax:                5.5,
		MaxWeight:                100,
		TruncationBoundaryFactor: 8,
		TauMin:                   0.06,
		TauMax:                   0.16,
		SigmaMin:                 0.02,
		SigmaMax:                 0.05,
		FsIntegrScale:            1,
		MinOccupancyThreshold:    -0.2,
	}
	tree, err := octree.NewTree(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	blockRef, _, err := tree.Allocate(tree.Root(), 7, 1)
	test.That(t, err, test.ShouldBeNil)
	return tree, blockRef
}

func TestUpdateBlockOccupancyMarksHitVoxelsObserved(t *testing.T) {
	tree, blockRef := occupancyTestTreeAndBlock(t)
	cam := tsdfCamera(t)
	depth := tsdfDepthImage(0.2)
	sensorPose := spatial.NewZeroPose()

	err := UpdateBlockOccupancy(tree, cam, sensorPose, depth, blockRef, false, 1)
	test.That(t, err, test.ShouldBeNil)

	mb, ok := tree.GetBlock(blockRef).(*octree.MultiResBlock)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mb.FirstVisit(), test.ShouldBeFalse)
}

func TestUpdateBlockFreeAppliesLogOddMinAtCurrentScale(t *testing.T) {
	tree, blockRef := occupancyTestTreeAndBlock(t)
	mb, ok := tree.GetBlock(blockRef).(*octree.MultiResBlock)
	test.That(t, ok, test.ShouldBeTrue)

	err := UpdateBlockFree(tree, blockRef, 1)
	test.That(t, err, test.ShouldBeNil)

	scale := mb.CurrentScale()
	edge := int(mb.ScaleEdge(scale))
	for x := 0; x < edge; x++ {
		for y := 0; y < edge; y++ {
			for z := 0; z < edge; z++ {
				rec := mb.AtScale(scale, x, y, z)
				test.That(t, rec.Observed, test.ShouldBeTrue)
				test.That(t, rec.Field, test.ShouldEqual, float32(-5.5))
			}
		}
	}
}

func TestMarkNodeFreeWritesDirectlyIntoNodeData(t *testing.T) {
	tree, _ := occupancyTestTreeAndBlock(t)
	nodeRef := tree.Root()
	test.That(t, nodeRef.IsBlock(), test.ShouldBeFalse)

	MarkNodeFree(tree, nodeRef, 2)

	node := tree.GetNode(nodeRef)
	test.That(t, node.Data().Observed, test.ShouldBeTrue)
	test.That(t, node.Data().Field, test.ShouldEqual, float32(-5.5))
}
