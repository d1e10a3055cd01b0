// Package fuse implements the per-voxel updaters spec.md §4.3 (TSDF) and
// §4.4 (occupancy) describe, plus the double-buffered scale-switch
// orchestration both share (spec.md: "identical in spirit to TSDF").
//
// Grounded on original_source's se::TSDFUpdater/se::MultiresOFusionUpdater
// (include/se/integrator/updater/impl/*_updater_impl.hpp) for the fusion
// formulas, driving octree.MultiResBlock's Stable/PendingSwitch state
// machine (octree/blockmr.go) rather than reimplementing it.
package fuse

import (
	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/voxel"
)

// RecommendScale implements spec.md §4.3's scale-recommendation clamp: the
// sensor model's raw recommendation is used unclamped on a block's first
// visit, and otherwise clamped to [lastScale-1, lastScale+1].
func RecommendScale(raw, maxScale, lastScale int, firstVisit bool) int {
	if raw < 0 {
		raw = 0
	}
	if raw > maxScale {
		raw = maxScale
	}
	if firstVisit {
		return raw
	}
	lo, hi := lastScale-1, lastScale+1
	if lo < 0 {
		lo = 0
	}
	if hi > maxScale {
		hi = maxScale
	}
	if raw < lo {
		return lo
	}
	if raw > hi {
		return hi
	}
	return raw
}

// ApplyScale drives block's Stable/PendingSwitch state machine toward the
// recommended scale, per spec.md §4.3/§4.4:
//   - if recommended matches the current scale, any pending switch is
//     abandoned ("reset any pending buffer and integrate into current");
//   - otherwise a pending switch at the recommended scale is started (or
//     left alone if already pending at that candidate), seeded by down-copy
//     when finer or up-aggregate when coarser.
//
// Returns the scale the caller should integrate this measurement into, and
// whether that target is the pending buffer rather than current.
func ApplyScale(block *octree.MultiResBlock, recommended int) (scale int, intoBuffer bool) {
	if block.FirstVisit() {
		block.MarkVisited()
	}
	if recommended == block.CurrentScale() {
		block.ResetPendingSwitch()
		return block.CurrentScale(), false
	}
	if pending, ok := block.PendingScale(); !ok || pending != recommended {
		seed := UpAggregateSeed
		if recommended < block.CurrentScale() {
			seed = DownCopySeed
		}
		block.BeginScaleSwitch(recommended, seed)
	}
	return recommended, true
}

// MaybeCommitSwitch checks block's pending switch against spec.md §4.3's
// promotion thresholds (>=20 integrations, buffer observed volume >=90% of
// current) and promotes it if ready.
func MaybeCommitSwitch(block *octree.MultiResBlock) {
	currentVolume := block.ScaleObservedVolume(block.CurrentScale())
	if block.ReadyToSwitch(currentVolume) {
		block.CommitSwitch()
	}
}

// DownCopySeed implements the finer-switch seeding rule (spec.md §4.3: "on
// a finer switch only, down-propagate each parent voxel's (d, w) into its
// eight children and mark them observed=false"); for a coarser candidate
// use UpAggregateSeed instead. RecommendScale's +-1 clamp means a switch
// only ever moves one scale at a time, so the buffer's edge is always
// exactly double the current level's; toScale is unused but kept in the
// signature to satisfy octree.ScaleSeedFunc.
func DownCopySeed(fromEdge int32, from []voxel.Record, toScale int) (int32, []voxel.Record) {
	_ = toScale
	n := int(fromEdge) * 2
	to := make([]voxel.Record, n*n*n)
	fromIndex := func(x, y, z int) int { return x + y*int(fromEdge) + z*int(fromEdge)*int(fromEdge) }
	toIndex := func(x, y, z int) int { return x + y*n + z*n*n }
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				rec := from[fromIndex(x/2, y/2, z/2)]
				rec.Observed = false
				to[toIndex(x, y, z)] = rec
			}
		}
	}
	return int32(n), to
}

// UpAggregateSeed implements the coarser-switch seeding rule: each parent
// voxel is the mean of its eight children's (d, w), matching the
// propagator's own block-up aggregation formula (spec.md §4.3's
// "d_parent = mean(children.d), w_parent = ceil(mean(children.w))").
func UpAggregateSeed(fromEdge int32, from []voxel.Record, toScale int) (int32, []voxel.Record) {
	_ = toScale
	n := int(fromEdge) / 2
	if n < 1 {
		n = 1
	}
	to := make([]voxel.Record, n*n*n)
	fromIndex := func(x, y, z int) int { return x + y*int(fromEdge) + z*int(fromEdge)*int(fromEdge) }
	toIndex := func(x, y, z int) int { return x + y*n + z*n*n }
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for z := 0; z < n; z++ {
				var sumD float64
				var sumW float64
				var count int
				for dx := 0; dx < 2; dx++ {
					for dy := 0; dy < 2; dy++ {
						for dz := 0; dz < 2; dz++ {
							child := from[fromIndex(x*2+dx, y*2+dy, z*2+dz)]
							if child.Weight == 0 {
								continue
							}
							sumD += float64(child.Field)
							sumW += float64(child.Weight)
							count++
						}
					}
				}
				var rec voxel.Record
				if count > 0 {
					rec.Field = float32(sumD / float64(count))
					rec.Weight = uint16(ceilDiv(sumW, float64(count)))
					rec.Observed = true
				}
				to[toIndex(x, y, z)] = rec
			}
		}
	}
	return int32(n), to
}

func ceilDiv(sum, count float64) float64 {
	mean := sum / count
	if mean != float64(int64(mean)) {
		return float64(int64(mean)) + 1
	}
	return mean
}
