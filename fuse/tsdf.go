package fuse

import (
	"github.com/golang/geo/r3"

	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/sensor"
	"go.viam.com/volumap/spatial"
	"go.viam.com/volumap/voxel"
)

// UpdateBlockTSDF implements spec.md §4.3's per-block TSDF update: for every
// voxel in blockRef at its current (or pending-buffer) integration scale,
// project the voxel into the sensor, compute the signed distance along the
// ray, and fold it into the running weighted average.
//
// Grounded on original_source's se::TSDFUpdater (updater/impl/tsdf_updater_
// impl.hpp)'s per-voxel loop; the scale-selection and buffer-seeding steps
// delegate to scale.go rather than duplicating that state machine.
func UpdateBlockTSDF(tree *octree.Tree, model sensor.Model, sensorPose spatial.Pose, depth *sensor.DepthImage, blockRef octree.Ref, ts uint64) error {
	cfg := tree.Config()
	blk := tree.GetBlock(blockRef)

	if sr, ok := blk.(*octree.SingleResBlock); ok {
		return updateSingleResTSDF(sr, cfg, model, sensorPose, depth, ts)
	}
	mb, ok := blk.(*octree.MultiResBlock)
	if !ok {
		return nil
	}

	toSensor := sensorPose.Invert()
	center := mb.Center().Mul(cfg.Res)
	repDepth := representativeDepth(model, toSensor, center)
	raw := model.ComputeIntegrationScale(repDepth, mb.MaxScale())
	recommended := RecommendScale(raw, mb.MaxScale(), mb.CurrentScale(), mb.FirstVisit())
	scale, intoBuffer := ApplyScale(mb, recommended)

	edge := mb.ScaleEdge(scale)
	if intoBuffer {
		edge = mb.BufferEdge()
	}
	cellVoxels := int32(mb.Edge()) / edge
	minCorner := mb.MinCorner()
	tau := cfg.Tau()

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
				sdf := (d - m) / m * rangeS
				if sdf <= -tau {
					continue
				}
				tsdf := clamp(sdf/tau, -1, 1)

				var rec voxel.Record
				if intoBuffer {
					rec = mb.BufferAt(x, y, z)
				} else {
					rec = mb.AtScale(scale, x, y, z)
				}
				wasObserved := rec.Observed
				w := float64(rec.Weight)
				rec.Field = float32((float64(rec.Field)*w + tsdf) / (w + 1))
				if rec.Weight < cfg.MaxWeight {
					rec.Weight++
				}
				rec.Observed = true
				if intoBuffer {
					mb.SetBufferAt(x, y, z, rec)
					mb.RecordBufferIntegration(!wasObserved)
				} else {
					mb.SetAtScale(scale, x, y, z, rec)
					mb.RecordCurrentIntegration(!wasObserved)
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

func updateSingleResTSDF(sr *octree.SingleResBlock, cfg voxel.Config, model sensor.Model, sensorPose spatial.Pose, depth *sensor.DepthImage, ts uint64) error {
	toSensor := sensorPose.Invert()
	minCorner := sr.MinCorner()
	tau := cfg.Tau()
	edge := int(sr.Edge())

	for x := 0; x < edge; x++ {
		for y := 0; y < edge; y++ {
			for z := 0; z < edge; z++ {
				worldCenter := cellCenter(minCorner, 1, x, y, z, cfg.Res)
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
				sdf := (d - m) / m * rangeS
				if sdf <= -tau {
					continue
				}
				tsdf := clamp(sdf/tau, -1, 1)

				rec := sr.At(x, y, z)
				w := float64(rec.Weight)
				rec.Field = float32((float64(rec.Field)*w + tsdf) / (w + 1))
				if rec.Weight < cfg.MaxWeight {
					rec.Weight++
				}
				rec.Observed = true
				sr.Set(x, y, z, rec)
			}
		}
	}
	sr.Touch(ts)
	return nil
}

// representativeDepth projects a block's centre to pick a scale
// recommendation for the whole block, falling back to Euclidean range when
// the centre falls outside the sensor's view (spec.md §4.3: "compute a
// recommended integration scale from the sensor model").
func representativeDepth(model sensor.Model, toSensor spatial.Pose, worldCenter r3.Vector) float64 {
	pS := toSensor.Transform(worldCenter)
	_, _, depth, ok := model.Project(pS)
	if !ok {
		return pS.Norm()
	}
	return depth
}

// cellCenter returns the world-space centre of a pyramid cell at block-local
// grid coordinate (x,y,z), where cellVoxels is how many finest-scale voxels
// each cell spans.
func cellCenter(minCorner [3]int32, cellVoxels int32, x, y, z int, res float64) r3.Vector {
	return r3.Vector{
		X: (float64(minCorner[0]) + (float64(x)+0.5)*float64(cellVoxels)) * res,
		Y: (float64(minCorner[1]) + (float64(y)+0.5)*float64(cellVoxels)) * res,
		Z: (float64(minCorner[2]) + (float64(z)+0.5)*float64(cellVoxels)) * res,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
