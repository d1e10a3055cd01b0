package octree

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/volumap/logging"
	"go.viam.com/volumap/voxel"
)

func testConfig() voxel.Config {
	return voxel.Config{
		Kind:                     voxel.TSDF,
		Resolution:               voxel.SingleRes,
		Res:                      0.1,
		BlockEdge:                4,
		MapSide:                  16,
		LogOddMin:                -5.5,
		LogOddMax:                5.5,
		MaxWeight:                100,
		TruncationBoundaryFactor: 8,
	}
}

func TestNewTreeRootSpansMapSide(t *testing.T) {
	tree, err := NewTree(testConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, tree.Contains([3]int32{-8, -8, -8}), test.ShouldBeTrue)
	test.That(t, tree.Contains([3]int32{7, 7, 7}), test.ShouldBeTrue)
	test.That(t, tree.Contains([3]int32{8, 0, 0}), test.ShouldBeFalse)
	test.That(t, tree.Contains([3]int32{-9, 0, 0}), test.ShouldBeFalse)
}

func TestNewTreeRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BlockEdge = 3 // not a power of two
	_, err := NewTree(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAllocateCreatesBlockAtLeafDepth(t *testing.T) {
	cfg := testConfig()
	cfg.MapSide = 8 // root's children are blocks
	tree, err := NewTree(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	childRef, created, err := tree.Allocate(tree.Root(), 7, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, created, test.ShouldBeTrue)
	test.That(t, childRef.IsBlock(), test.ShouldBeTrue)

	blk, ok := tree.GetBlock(childRef).(*SingleResBlock)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, blk.MinCorner(), test.ShouldResemble, [3]int32{0, 0, 0})
	test.That(t, blk.Edge(), test.ShouldEqual, int32(4))
}

func TestAllocateIsIdempotentForSameChild(t *testing.T) {
	tree, err := NewTree(testConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	first, created1, err := tree.Allocate(tree.Root(), 7, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, created1, test.ShouldBeTrue)

	second, created2, err := tree.Allocate(tree.Root(), 7, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, created2, test.ShouldBeFalse)
	test.That(t, first, test.ShouldEqual, second)
}

func TestAllocateRejectsOutOfRangeChildIndex(t *testing.T) {
	tree, err := NewTree(testConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, _, err = tree.Allocate(tree.Root(), 8, 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLocateFindsBlockContainingVoxel(t *testing.T) {
	cfg := testConfig()
	cfg.MapSide = 8 // root's children are blocks
	tree, err := NewTree(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	blockRef, _, err := tree.Allocate(tree.Root(), 7, 1)
	test.That(t, err, test.ShouldBeNil)

	found, isBlock := tree.Locate([3]int32{1, 2, 3})
	test.That(t, isBlock, test.ShouldBeTrue)
	test.That(t, found, test.ShouldEqual, blockRef)
}

func TestLocateReturnsDeepestAllocatedAncestorWhenUnallocated(t *testing.T) {
	tree, err := NewTree(testConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	found, isBlock := tree.Locate([3]int32{1, 2, 3})
	test.That(t, isBlock, test.ShouldBeFalse)
	test.That(t, found, test.ShouldEqual, tree.Root())
}

func TestDeleteChildrenClearsMask(t *testing.T) {
	tree, err := NewTree(testConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, _, err = tree.Allocate(tree.Root(), 7, 1)
	test.That(t, err, test.ShouldBeNil)

	root := tree.GetNode(tree.Root())
	test.That(t, root.Mask(), test.ShouldNotEqual, uint8(0))

	err = tree.DeleteChildren(tree.Root())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, root.Mask(), test.ShouldEqual, uint8(0))
}

func TestBlocksListsEveryAllocatedLeaf(t *testing.T) {
	cfg := testConfig()
	cfg.MapSide = 8 // root's children are blocks
	tree, err := NewTree(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, _, err = tree.Allocate(tree.Root(), 0, 1)
	test.That(t, err, test.ShouldBeNil)
	_, _, err = tree.Allocate(tree.Root(), 7, 1)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, len(tree.Blocks()), test.ShouldEqual, 2)
}

func TestAABBMatchesRootInWorldUnits(t *testing.T) {
	tree, err := NewTree(testConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	box := tree.AABB()
	test.That(t, box.Min.X, test.ShouldAlmostEqual, -0.8, 1e-9)
	test.That(t, box.Max.X, test.ShouldAlmostEqual, 0.8, 1e-9)
}
