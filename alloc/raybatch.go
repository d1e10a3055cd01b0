package alloc

import (
	"github.com/golang/geo/r3"

	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/spatial"
)

// Ray is one measurement in a LiDAR batch: the sensor pose it was taken
// from and the world-space point it hit.
type Ray struct {
	Pose  spatial.Pose
	Point r3.Vector
}

// RayBatchResult is the deduplicated set of blocks a ray batch touched,
// each tagged with the rays that landed in it so the updater can amortise
// their integration in one pass before propagation (spec.md §4.2).
type RayBatchResult struct {
	Blocks []octree.Ref
	Rays   map[octree.Ref][]Ray
}

// AllocateRayBatch implements spec.md §4.2's ray-batch allocator: every ray
// in the batch allocates the blocks it traverses via a sparse DDA walk from
// sensor to hit point, and the result groups rays by the block they landed
// in so the updater can integrate a batch's worth of rays per block before
// propagating (spec.md §4.2: "the updater amortises the ray-integration
// across the batch before propagating").
func AllocateRayBatch(tree *octree.Tree, rays []Ray, ts uint64) (*RayBatchResult, error) {
	out := &RayBatchResult{Rays: make(map[octree.Ref][]Ray)}
	seenOrder := make(map[octree.Ref]struct{})

	for _, ray := range rays {
		touched := dda(tree, ray.Pose.Point(), ray.Point, ts)
		for _, r := range touched {
			if _, ok := seenOrder[r]; !ok {
				seenOrder[r] = struct{}{}
				out.Blocks = append(out.Blocks, r)
			}
		}
		if len(touched) > 0 {
			hit := touched[len(touched)-1]
			out.Rays[hit] = append(out.Rays[hit], ray)
		}
	}
	return out, nil
}

// dda walks the segment from origin to hit in block-sized strides,
// allocating and collecting every block the ray passes through, a sparse
// digital-differential-analyser over octree blocks rather than individual
// voxels (spec.md §4.2: "each ray allocates the blocks it traverses (sparse
// DDA over the octree)").
func dda(tree *octree.Tree, origin, hit r3.Vector, ts uint64) []octree.Ref {
	cfg := tree.Config()
	tau := cfg.Tau()
	dir := hit.Sub(origin)
	dist := dir.Norm()
	if dist == 0 {
		return nil
	}
	dir = dir.Mul(1 / dist)

	stride := float64(cfg.BlockEdge) * cfg.Res
	end := dist + tau
	steps := int(end/stride) + 2

	seen := make(map[[3]int32]struct{})
	var out []octree.Ref
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps) * end
		p := origin.Add(dir.Mul(t))
		blockMin := blockMinCorner(tree, p)
		if _, dup := seen[blockMin]; dup {
			continue
		}
		seen[blockMin] = struct{}{}

		r, err := descendAllocate(tree, p, ts)
		if err != nil {
			// A stride landed outside the map (e.g. a ray grazing the
			// root's boundary): skip it rather than aborting the whole
			// ray's traversal.
			continue
		}
		out = append(out, r)
	}
	return out
}
