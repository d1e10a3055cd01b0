package fuse

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/volumap/logging"
	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/voxel"
)

// buildMultiResBlock allocates a BlockEdge=4 MultiResBlock, whose maxScale
// (2) is also its initial current scale, so a recommended scale of 1 is a
// single finer step away, matching RecommendScale's +-1 clamp.
func buildMultiResBlock(t *testing.T) *octree.MultiResBlock {
	t.Helper()
	cfg := voxel.Config{
		Kind:                     voxel.TSDF,
		Resolution:               voxel.MultiRes,
		Res:                      0.1,
		BlockEdge:                4,
		MapSide:                  8,
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
	test.That(t, blk.CurrentScale(), test.ShouldEqual, 2)
	return blk
}

func TestApplyScaleStartsAPendingSwitchForADifferentScale(t *testing.T) {
	blk := buildMultiResBlock(t)
	test.That(t, blk.FirstVisit(), test.ShouldBeTrue)

	scale, intoBuffer := ApplyScale(blk, 1)
	test.That(t, intoBuffer, test.ShouldBeTrue)
	test.That(t, scale, test.ShouldEqual, 1)
	test.That(t, blk.FirstVisit(), test.ShouldBeFalse)

	pending, ok := blk.PendingScale()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pending, test.ShouldEqual, 1)
}

func TestApplyScaleResetsPendingWhenRecommendationMatchesCurrent(t *testing.T) {
	blk := buildMultiResBlock(t)
	ApplyScale(blk, 1)
	_, ok := blk.PendingScale()
	test.That(t, ok, test.ShouldBeTrue)

	scale, intoBuffer := ApplyScale(blk, blk.CurrentScale())
	test.That(t, intoBuffer, test.ShouldBeFalse)
	test.That(t, scale, test.ShouldEqual, blk.CurrentScale())
	_, ok = blk.PendingScale()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestMaybeCommitSwitchPromotesOnceThresholdsAreMet(t *testing.T) {
	blk := buildMultiResBlock(t)
	ApplyScale(blk, 1)
	edge := int(blk.BufferEdge())
	for x := 0; x < edge; x++ {
		for y := 0; y < edge; y++ {
			for z := 0; z < edge; z++ {
				blk.SetBufferAt(x, y, z, voxel.Record{Field: 0, Weight: 1, Observed: true})
			}
		}
	}
	for i := 0; i < 20; i++ {
		blk.RecordBufferIntegration(true)
	}

	MaybeCommitSwitch(blk)
	test.That(t, blk.CurrentScale(), test.ShouldEqual, 1)
	_, pending := blk.PendingScale()
	test.That(t, pending, test.ShouldBeFalse)
}

func TestMaybeCommitSwitchLeavesPendingBelowThreshold(t *testing.T) {
	blk := buildMultiResBlock(t)
	startScale := blk.CurrentScale()
	ApplyScale(blk, 1)
	blk.RecordBufferIntegration(true)

	MaybeCommitSwitch(blk)
	test.That(t, blk.CurrentScale(), test.ShouldEqual, startScale)
	_, pending := blk.PendingScale()
	test.That(t, pending, test.ShouldBeTrue)
}
