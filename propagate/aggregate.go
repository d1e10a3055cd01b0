// Package propagate implements spec.md §4.5's two-phase propagator:
// block-up aggregation within a multi-res block's own scale pyramid, then
// root-up aggregation from every block touched this frame up to the tree's
// root.
//
// Grounded on pointcloud/collision_octree.go's Transform method, the only
// teacher file that aggregates a value bottom-up over internalNode/leaf
// children into a new parent value (newTotalX += transformedChild.meta.totalX,
// etc.); BlockUp and RootUp keep that "loop over up-to-eight children,
// accumulate into the parent" shape, generalized from a coordinate-transform
// accumulator to the mean/min/max/observed aggregation spec.md §4.5 specifies.
package propagate

import "go.viam.com/volumap/voxel"

// meanRecord implements the (mean d, ceil(mean w)) aggregate spec.md
// §4.3/§4.5 both use: mean of children with w>0 (children with w=0 are
// excluded), weight rounded up. Identical to fuse/scale.go's
// UpAggregateSeed math, duplicated rather than shared because the two
// packages aggregate over different shapes (a whole pyramid level there,
// one 2x2x2 octet here) and neither depends on the other.
func meanRecord(children []voxel.Record) voxel.Record {
	var sumD, sumW float64
	var count int
	for _, c := range children {
		if c.Weight == 0 {
			continue
		}
		sumD += float64(c.Field)
		sumW += float64(c.Weight)
		count++
	}
	var rec voxel.Record
	if count > 0 {
		rec.Field = float32(sumD / float64(count))
		rec.Weight = uint16(ceilMean(sumW, float64(count)))
		rec.Observed = true
	}
	return rec
}

func ceilMean(sum, count float64) float64 {
	mean := sum / count
	if mean != float64(int64(mean)) {
		return float64(int64(mean)) + 1
	}
	return mean
}

// pickMin and pickMax implement spec.md §4.5's occupancy min/max aggregate:
// the child record with the smallest (respectively largest) field value,
// ties keeping the first one encountered.
func pickMin(records []voxel.Record) voxel.Record {
	best := records[0]
	for _, r := range records[1:] {
		if r.Field < best.Field {
			best = r
		}
	}
	return best
}

func pickMax(records []voxel.Record) voxel.Record {
	best := records[0]
	for _, r := range records[1:] {
		if r.Field > best.Field {
			best = r
		}
	}
	return best
}

// allObserved reports whether every record in the slice has Observed set,
// per spec.md §4.5: "observed on min/max propagates only when all eight
// children are observed."
func allObserved(records []voxel.Record) bool {
	for _, r := range records {
		if !r.Observed {
			return false
		}
	}
	return true
}
