// Package alloc implements the three allocation strategies spec.md §4.2
// describes: ray-casting allocation for TSDF depth frames, volume-carving
// allocation for occupancy depth frames, and ray-batch allocation for
// spinning LiDAR. All three share the same descend-and-allocate primitive
// over octree.Tree; they differ only in which voxel-space region each
// measurement touches.
//
// Grounded on go.viam.com/rdk/pointcloud/collision_octree.go's recursive
// internalNode/leafNodeFilled/leafNodeEmpty descent, adapted from "test a
// fixed geometry against a static tree" to "allocate tree structure lazily
// while descending toward a measurement."
package alloc

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/spatial"
)

// AllocateForDepthPixel implements spec.md §4.2's ray-casting allocation: it
// builds the truncation-band segment [p-tau*r, p+tau*r] around worldPoint,
// walks it in block-sized strides, and returns the deduplicated set of
// blocks that must receive this frame's update.
func AllocateForDepthPixel(tree *octree.Tree, sensorPose spatial.Pose, worldPoint r3.Vector, ts uint64) ([]octree.Ref, error) {
	cfg := tree.Config()
	tau := cfg.Tau()

	dir := worldPoint.Sub(sensorPose.Point())
	n := dir.Norm()
	if n == 0 {
		return nil, nil
	}
	dir = dir.Mul(1 / n)

	start := worldPoint.Sub(dir.Mul(tau))
	end := worldPoint.Add(dir.Mul(tau))

	stride := float64(cfg.BlockEdge) * cfg.Res
	segLen := end.Sub(start).Norm()
	steps := int(segLen/stride) + 2

	seen := make(map[[3]int32]struct{})
	var out []octree.Ref
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		p := start.Add(end.Sub(start).Mul(t))
		blockMin := blockMinCorner(tree, p)
		if _, dup := seen[blockMin]; dup {
			continue
		}
		seen[blockMin] = struct{}{}

		r, err := descendAllocate(tree, p, ts)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// blockMinCorner returns the voxel-space minimum corner of the block-sized
// cell a world-space point falls in, used only to deduplicate strides before
// paying for a descend-and-allocate call.
func blockMinCorner(tree *octree.Tree, p r3.Vector) [3]int32 {
	cfg := tree.Config()
	v := worldToVoxel(p, cfg.Res)
	b := int32(cfg.BlockEdge)
	return [3]int32{
		floorDiv(v[0], b) * b,
		floorDiv(v[1], b) * b,
		floorDiv(v[2], b) * b,
	}
}

// descendAllocate walks from the tree's root to the block containing
// world-space point p, allocating any missing nodes or the terminal block
// along the way (spec.md §4.2: "descend the tree from the root, allocating
// missing nodes on the way down").
func descendAllocate(tree *octree.Tree, p r3.Vector, ts uint64) (octree.Ref, error) {
	cfg := tree.Config()
	v := worldToVoxel(p, cfg.Res)
	if !tree.Contains(v) {
		return octree.Ref{}, errors.Wrap(errVoxelOutsideMap, "descend allocate")
	}

	cur := tree.Root()
	for {
		if cur.IsBlock() {
			return cur, nil
		}
		node := tree.GetNode(cur)
		idx := childIndexFor(node.MinCorner(), node.Edge(), v)
		child, _, err := tree.Allocate(cur, idx, ts)
		if err != nil {
			return octree.Ref{}, err
		}
		cur = child
	}
}

// childIndexFor returns which of a node's eight children contains voxel v,
// per spec.md §3's "child index = 4*x + 2*y + z relative bit" convention.
func childIndexFor(minCorner [3]int32, edge int32, v [3]int32) int {
	half := edge / 2
	x := 0
	if v[0] >= minCorner[0]+half {
		x = 1
	}
	y := 0
	if v[1] >= minCorner[1]+half {
		y = 1
	}
	z := 0
	if v[2] >= minCorner[2]+half {
		z = 1
	}
	return 4*x + 2*y + z
}

func worldToVoxel(p r3.Vector, res float64) [3]int32 {
	return [3]int32{
		int32(floorFloat(p.X / res)),
		int32(floorFloat(p.Y / res)),
		int32(floorFloat(p.Z / res)),
	}
}

func floorFloat(v float64) float64 {
	i := float64(int64(v))
	if v < 0 && v != i {
		return i - 1
	}
	return i
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

var errVoxelOutsideMap = errors.New("voxel falls outside the map's root bounds")
