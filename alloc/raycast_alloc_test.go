package alloc

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/volumap/logging"
	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/spatial"
	"go.viam.com/volumap/voxel"
)

func testTree(t *testing.T) *octree.Tree {
	t.Helper()
	cfg := voxel.Config{
		Kind:                     voxel.TSDF,
		Resolution:               voxel.SingleRes,
		Res:                      0.1,
		BlockEdge:                4,
		MapSide:                  32,
		LogOddMin:                -5.5,
		LogOddMax:                5.5,
		MaxWeight:                100,
		TruncationBoundaryFactor: 8,
	}
	tree, err := octree.NewTree(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return tree
}

func TestAllocateForDepthPixelReturnsBlocksCoveringTruncationBand(t *testing.T) {
	tree := testTree(t)
	out, err := AllocateForDepthPixel(tree, spatial.NewZeroPose(), r3.Vector{X: 0, Y: 0, Z: 0.5}, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(out) > 0, test.ShouldBeTrue)
	for _, r := range out {
		test.That(t, r.IsBlock(), test.ShouldBeTrue)
	}
}

func TestAllocateForDepthPixelDedupesBlocksAcrossStrides(t *testing.T) {
	tree := testTree(t)
	out, err := AllocateForDepthPixel(tree, spatial.NewZeroPose(), r3.Vector{X: 0, Y: 0, Z: 0.5}, 1)
	test.That(t, err, test.ShouldBeNil)

	seen := make(map[octree.Ref]struct{})
	for _, r := range out {
		_, dup := seen[r]
		test.That(t, dup, test.ShouldBeFalse)
		seen[r] = struct{}{}
	}
}

func TestAllocateForDepthPixelErrorsWhenPointOutsideMap(t *testing.T) {
	tree := testTree(t)
	_, err := AllocateForDepthPixel(tree, spatial.NewZeroPose(), r3.Vector{X: 0, Y: 0, Z: 100}, 1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAllocateForDepthPixelReturnsNilForZeroLengthRay(t *testing.T) {
	tree := testTree(t)
	out, err := AllocateForDepthPixel(tree, spatial.NewZeroPose(), r3.Vector{}, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldBeNil)
}

func TestChildIndexForSelectsOctantContainingVoxel(t *testing.T) {
	minCorner := [3]int32{-8, -8, -8}
	edge := int32(16)

	test.That(t, childIndexFor(minCorner, edge, [3]int32{-8, -8, -8}), test.ShouldEqual, 0)
	test.That(t, childIndexFor(minCorner, edge, [3]int32{7, 7, 7}), test.ShouldEqual, 7)
	test.That(t, childIndexFor(minCorner, edge, [3]int32{0, -8, -8}), test.ShouldEqual, 4)
}

func TestDescendAllocateReturnsSameBlockForPointsInSameBlock(t *testing.T) {
	tree := testTree(t)
	a, err := descendAllocate(tree, r3.Vector{X: 0.01, Y: 0.01, Z: 0.01}, 1)
	test.That(t, err, test.ShouldBeNil)
	b, err := descendAllocate(tree, r3.Vector{X: 0.05, Y: 0.05, Z: 0.05}, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a, test.ShouldEqual, b)
}
