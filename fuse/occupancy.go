package fuse

import (
	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/sensor"
	"go.viam.com/volumap/spatial"
	"go.viam.com/volumap/voxel"
)

// rangeParams is the range-dependent noise model spec.md §6's config knobs
// (tau_min/tau_max, sigma_min/sigma_max) parameterize: both widen linearly
// between the sensor's near and far distance, matching the shape of
// original_source's per-range tau/sigma lookup (compute_tau/compute_sigma
// in multires_ofusion_updater_impl.hpp, whose bodies were not part of the
// retrieved sources — the linear interpolation itself is this package's own
// choice, noted in DESIGN.md).
func rangeParams(cfg voxel.Config, near, far, rangeS float64) (tau, sigma float64) {
	frac := 0.0
	if far > near {
		frac = (rangeS - near) / (far - near)
	}
	frac = clamp(frac, 0, 1)
	tau = cfg.TauMin + (cfg.TauMax-cfg.TauMin)*frac
	sigma = cfg.SigmaMin + (cfg.SigmaMax-cfg.SigmaMin)*frac
	return tau, sigma
}

// occupancySample implements spec.md §4.4's four-branch log-odds ramp given
// range_diff = (m - d) * (rangeS / m), tau and sigma at this range. ok is
// false when range_diff >= tau (beyond the surface band: no update).
func occupancySample(rangeDiff, tau, sigma, logOddMin, logOddMax float64) (sample float64, ok bool) {
	threeSigma := 3 * sigma
	switch {
	case rangeDiff < -threeSigma:
		return logOddMin, true
	case rangeDiff < tau/2:
		// Linear ramp from logOddMin at -3sigma toward 0 at tau/2.
		span := tau/2 + threeSigma
		frac := (rangeDiff + threeSigma) / span
		s := logOddMin * (1 - frac)
		if s > logOddMax {
			s = logOddMax
		}
		return s, true
	case rangeDiff < tau:
		s := -logOddMin * tau / (2 * threeSigma)
		if s > logOddMax {
			s = logOddMax
		}
		return s, true
	default:
		return 0, false
	}
}

// fuseOccupancy applies spec.md §4.4's fusion step to a voxel record: o' =
// o + sample, w' = min(w+1, w_max), observed <- true. Returns whether the
// voxel became newly observed.
func fuseOccupancy(rec voxel.Record, sample float64, maxWeight uint16, logOddMin, logOddMax float64) (voxel.Record, bool) {
	newlyObserved := !rec.Observed
	field := float64(rec.Field) + sample
	field = clamp(field, logOddMin, logOddMax)
	rec.Field = float32(field)
	if rec.Weight < maxWeight {
		rec.Weight++
	}
	rec.Observed = true
	return rec, newlyObserved
}

// UpdateBlockOccupancy implements spec.md §4.4's per-block occupancy
// update for a hit block (one whose footprint spans the surface band, per
// the volume-carving allocator's classification), grounded on
// original_source's se::MultiresOFusionUpdater's per-voxel loop
// (updater/impl/multires_ofusion_updater_impl.hpp).
//
// lowVarianceFree should be true when the allocator classified this block
// as Constant-variance and it has never integrated a non-free reading
// (spec.md §4.4's fs_integr_scale override).
func UpdateBlockOccupancy(tree *octree.Tree, model sensor.Model, sensorPose spatial.Pose, depth *sensor.DepthImage, blockRef octree.Ref, lowVarianceFree bool, ts uint64) error {
	cfg := tree.Config()
	blk := tree.GetBlock(blockRef)
	mb, ok := blk.(*octree.MultiResBlock)
	if !ok {
		return nil
	}

	toSensor := sensorPose.Invert()
	center := mb.Center().Mul(cfg.Res)
	repDepth := representativeDepth(model, toSensor, center)

	raw := model.ComputeIntegrationScale(repDepth, mb.MaxScale())
	upper := mb.CurrentScale() + 1
	if upper > mb.MaxScale() {
		upper = mb.MaxScale()
	}
	recommended := raw
	if !mb.FirstVisit() && recommended > upper {
		recommended = upper
	}
	if lowVarianceFree && recommended < cfg.FsIntegrScale {
		recommended = cfg.FsIntegrScale
	}
	recommended = int(clamp(float64(recommended), 0, float64(mb.MaxScale())))

	scale, intoBuffer := ApplyScale(mb, recommended)
	edge := mb.ScaleEdge(scale)
	if intoBuffer {
		edge = mb.BufferEdge()
	}
	cellVoxels := int32(mb.Edge()) / edge
	minCorner := mb.MinCorner()

	for x := 0; x < int(edge); x++ {
		for y := 0; y < int(edge); y++ {
			for z := 0; z < int(edge); z++ {
				worldCenter := cellCenter(minCorner, cellVoxels, x, y, z, cfg.Res)
				pS := toSensor.Transform(worldCenter)
				rangeS := pS.Norm()
				if rangeS > model.FarDist() {
					continue
				}
				u, v, m, ok := model.Project(pS)
				if !ok || m == 0 {
					continue
				}
				d := float64(depth.At(u, v))
				if d <= 0 {
					continue
				}
				tau, sigma := rangeParams(cfg, model.NearDist(), model.FarDist(), rangeS)
				rangeDiff := (m - d) * (rangeS / m)
				sample, ok := occupancySample(rangeDiff, tau, sigma, cfg.LogOddMin, cfg.LogOddMax)
				if !ok {
					continue
				}

				var rec voxel.Record
				if intoBuffer {
					rec = mb.BufferAt(x, y, z)
				} else {
					rec = mb.AtScale(scale, x, y, z)
				}
				rec, newlyObserved := fuseOccupancy(rec, sample, cfg.MaxWeight, cfg.LogOddMin, cfg.LogOddMax)
				if intoBuffer {
					mb.SetBufferAt(x, y, z, rec)
					mb.RecordBufferIntegration(newlyObserved)
				} else {
					mb.SetAtScale(scale, x, y, z, rec)
					mb.RecordCurrentIntegration(newlyObserved)
				}
			}
		}
	}

	if intoBuffer {
		MaybeCommitSwitch(mb)
	}
	mb.Touch(ts)
	return nil
}

// UpdateBlockFree implements spec.md §4.4's free-space update for a block
// traversed by rays but not hit by any of them: every voxel at the block's
// current scale is fused with sample = log_odd_min.
func UpdateBlockFree(tree *octree.Tree, blockRef octree.Ref, ts uint64) error {
	cfg := tree.Config()
	blk := tree.GetBlock(blockRef)
	mb, ok := blk.(*octree.MultiResBlock)
	if !ok {
		return nil
	}
	scale := mb.CurrentScale()
	edge := int(mb.ScaleEdge(scale))
	for x := 0; x < edge; x++ {
		for y := 0; y < edge; y++ {
			for z := 0; z < edge; z++ {
				rec := mb.AtScale(scale, x, y, z)
				rec, _ = fuseOccupancy(rec, cfg.LogOddMin, cfg.MaxWeight, cfg.LogOddMin, cfg.LogOddMax)
				mb.SetAtScale(scale, x, y, z, rec)
			}
		}
	}
	mb.Touch(ts)
	return nil
}

// MarkNodeFree implements spec.md §4.4's whole-node free write, used by
// volume carving at coarse scales: it writes the free log-odds value into
// the node's own representative record without allocating any block,
// avoiding the memory a per-voxel write would cost for a bulk-free region.
func MarkNodeFree(tree *octree.Tree, nodeRef octree.Ref, ts uint64) {
	cfg := tree.Config()
	node := tree.GetNode(nodeRef)
	rec, _ := fuseOccupancy(node.Data(), cfg.LogOddMin, cfg.MaxWeight, cfg.LogOddMin, cfg.LogOddMax)
	node.SetData(rec)
	node.Touch(ts)
}
