// Package volumap is the top-level integration pipeline: it owns one
// octree.Tree and runs each frame's allocate -> update -> propagate-blocks
// -> propagate-to-root phases over a bounded workpool.Pool, mirroring the
// teacher's top-level service types (e.g. motionplan's planManager) that
// own one piece of shared state and drive it through named phase methods.
package volumap

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/volumap/alloc"
	"go.viam.com/volumap/fuse"
	"go.viam.com/volumap/logging"
	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/perfstats"
	"go.viam.com/volumap/propagate"
	"go.viam.com/volumap/sensor"
	"go.viam.com/volumap/spatial"
	"go.viam.com/volumap/voxel"
	"go.viam.com/volumap/workpool"
)

// MapConfig matches spec.md §6's enumerated option list exactly: it is
// voxel.Config verbatim, given its own name at this layer so callers never
// need to import the voxel package just to construct a Map.
type MapConfig = voxel.Config

// Map owns one octree.Tree and the pool/sink/frame-counter state needed to
// drive it through repeated Frame calls.
type Map struct {
	tree   *octree.Tree
	pool   *workpool.Pool
	sink   *perfstats.Sink
	logger logging.Logger

	mu    sync.Mutex
	frame uint64
}

// frameState carries the allocate phase's occupancy-specific output
// (variance/projects-inside classification) into the update phase, without
// stashing per-frame data on Map itself (Frame must stay safe to call
// serially without successive calls clobbering each other's state).
type frameState struct {
	carve *alloc.CarveResult
}

// NewMap validates cfg, builds an empty octree.Tree, and returns a Map
// ready to integrate frames. workers <= 0 uses runtime.NumCPU (workpool.New).
func NewMap(cfg MapConfig, logger logging.Logger, workers int) (*Map, error) {
	tree, err := octree.NewTree(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Map{
		tree:   tree,
		pool:   workpool.New(workers),
		sink:   perfstats.NewSink(),
		logger: logger,
	}, nil
}

// Tree returns the Map's backing octree, for callers of raycast/mesh.
func (m *Map) Tree() *octree.Tree { return m.tree }

// Stats returns the Map's perf/volume statistics sink.
func (m *Map) Stats() *perfstats.Sink { return m.sink }

// Frame integrates one depth measurement into the map: allocate the
// octants the measurement touches, fuse the measurement into each touched
// block, then propagate aggregates block-up and root-up (spec.md §2's
// per-frame control flow). now is a caller-supplied wall-clock reading (in
// seconds) used only for perfstats.Sink's duration timers, so tests can
// drive it with a fake clock.
func (m *Map) Frame(ctx context.Context, model sensor.Model, sensorPose spatial.Pose, depth *sensor.DepthImage, now float64) error {
	m.mu.Lock()
	m.frame++
	ts := m.frame
	m.mu.Unlock()

	m.sink.BeginFrame(int(ts))
	m.sink.StartDuration("frame", now)
	defer m.sink.EndDuration("frame", now)

	if primer, ok := model.(sensor.FramePrimer); ok {
		primer.SetFrame(sensorPose, depth, nil)
	}

	touched, state, err := m.allocate(ctx, model, sensorPose, depth, ts)
	if err != nil {
		m.logger.Errorf("frame %d: allocate phase failed: %v", ts, err)
		return errors.Wrap(err, "allocate phase")
	}
	m.sink.Sample("touched_blocks", float64(len(touched)), perfstats.Volume)
	m.logger.Debugf("frame %d: allocate touched %d blocks", ts, len(touched))

	if err := m.update(ctx, model, sensorPose, depth, touched, state, ts); err != nil {
		m.logger.Errorf("frame %d: update phase failed: %v", ts, err)
		return errors.Wrap(err, "update phase")
	}

	m.pool.Run(ctx, len(touched), func(_ context.Context, i int) {
		mb, ok := m.tree.GetBlock(touched[i]).(*octree.MultiResBlock)
		if !ok {
			return
		}
		propagate.BlockUp(mb)
	})

	propagate.RootUp(m.tree, touched, ts)
	m.logger.Debugf("frame %d: complete", ts)
	return nil
}

// allocate dispatches to spec.md §4.2's occupancy volume-carving allocator
// or its per-pixel TSDF ray-cast allocator depending on voxel.Kind, and
// returns the deduplicated set of blocks the frame touched.
func (m *Map) allocate(ctx context.Context, model sensor.Model, sensorPose spatial.Pose, depth *sensor.DepthImage, ts uint64) ([]octree.Ref, frameState, error) {
	cfg := m.tree.Config()
	switch cfg.Kind {
	case voxel.Occupancy:
		result, err := alloc.CarveVolume(m.tree, model, sensorPose, depth, ts)
		if err != nil {
			return nil, frameState{}, err
		}
		for _, nodeRef := range result.FreeNodes {
			fuse.MarkNodeFree(m.tree, nodeRef, ts)
		}
		return result.UpdateBlocks, frameState{carve: result}, nil
	default: // TSDF
		touched, err := m.allocatePerPixel(ctx, model, sensorPose, depth, ts)
		return touched, frameState{}, err
	}
}

// allocatePerPixel shards the depth image's rows across the pool, calling
// AllocateForDepthPixel per valid reading, and merges the per-row block
// sets under one mutex (spec.md §4.2's TSDF path: every pixel allocates the
// blocks its truncation segment spans).
func (m *Map) allocatePerPixel(ctx context.Context, model sensor.Model, sensorPose spatial.Pose, depth *sensor.DepthImage, ts uint64) ([]octree.Ref, error) {
	var mu sync.Mutex
	seen := make(map[octree.Ref]struct{})
	var touched []octree.Ref
	var errs []error

	m.pool.Run(ctx, depth.Height(), func(_ context.Context, y int) {
		for x := 0; x < depth.Width(); x++ {
			d := depth.At(x, y)
			if d < model.NearDist() || d > model.FarDist() {
				continue
			}
			sensorPoint := model.BackProject(x, y, d)
			worldPoint := sensorPose.Transform(sensorPoint)
			refs, err := alloc.AllocateForDepthPixel(m.tree, sensorPose, worldPoint, ts)
			mu.Lock()
			if err != nil {
				errs = append(errs, err)
				mu.Unlock()
				continue
			}
			for _, r := range refs {
				if _, ok := seen[r]; !ok {
					seen[r] = struct{}{}
					touched = append(touched, r)
				}
			}
			mu.Unlock()
		}
	})
	// A depth image spans many rows in flight on the pool at once; a handful of
	// out-of-range pixels reporting ErrInvalidInput shouldn't discard every
	// other row's allocations, so every pixel's error is fused rather than
	// aborting on the first one.
	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}
	return touched, nil
}

// update shards the touched block set across the pool, fusing depth into
// each block via spec.md §4.3 (TSDF) or §4.4 (occupancy).
func (m *Map) update(ctx context.Context, model sensor.Model, sensorPose spatial.Pose, depth *sensor.DepthImage, touched []octree.Ref, state frameState, ts uint64) error {
	cfg := m.tree.Config()
	var mu sync.Mutex
	var errs []error
	var switched int

	m.pool.Run(ctx, len(touched), func(_ context.Context, i int) {
		blockRef := touched[i]
		mb, isMultiRes := m.tree.GetBlock(blockRef).(*octree.MultiResBlock)
		var scaleBefore int
		if isMultiRes {
			scaleBefore = mb.CurrentScale()
		}

		var err error
		switch cfg.Kind {
		case voxel.Occupancy:
			lowVarianceFree := false
			if state.carve != nil {
				lowVarianceFree = state.carve.Variance[blockRef] == alloc.Constant && !state.carve.ProjectsInside[blockRef]
			}
			err = fuse.UpdateBlockOccupancy(m.tree, model, sensorPose, depth, blockRef, lowVarianceFree, ts)
		default:
			err = fuse.UpdateBlockTSDF(m.tree, model, sensorPose, depth, blockRef, ts)
		}

		mu.Lock()
		if err != nil {
			errs = append(errs, err)
		} else if isMultiRes && mb.CurrentScale() != scaleBefore {
			switched++
		}
		mu.Unlock()
	})
	if switched > 0 {
		m.logger.Debugf("frame %d: %d blocks committed a scale switch", ts, switched)
	}
	return multierr.Combine(errs...)
}
