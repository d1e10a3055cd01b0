package volumap

import (
	"context"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/volumap/logging"
	"go.viam.com/volumap/sensor"
	"go.viam.com/volumap/spatial"
	"go.viam.com/volumap/voxel"
)

func TestFrameIntegratesTSDFDepthImage(t *testing.T) {
	cfg := voxel.Config{
		Kind:                     voxel.TSDF,
		Resolution:               voxel.SingleRes,
		Res:                      0.1,
		BlockEdge:                8,
		MapSide:                  64,
		LogOddMin:                -5.5,
		LogOddMax:                5.5,
		MaxWeight:                100,
		TruncationBoundaryFactor: 8,
	}
	m, err := NewMap(cfg, logging.NewTestLogger(t), 2)
	test.That(t, err, test.ShouldBeNil)

	model, err := sensor.NewPinholeCamera(sensor.PinholeCameraIntrinsics{
		Width: 4, Height: 4, Fx: 4, Fy: 4, Ppx: 2, Ppy: 2,
	}, nil, 0.1, 5.0)
	test.That(t, err, test.ShouldBeNil)

	depth := sensor.NewDepthImage(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			depth.Set(x, y, 1.0)
		}
	}

	err = m.Frame(context.Background(), model, spatial.NewZeroPose(), depth, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(m.Tree().Blocks()) > 0, test.ShouldBeTrue)

	_, hasTouched := m.Stats().FrameValue("touched_blocks", 1)
	test.That(t, hasTouched, test.ShouldBeTrue)
}

func TestFrameAdvancesFrameCounterEachCall(t *testing.T) {
	cfg := voxel.Config{
		Kind:                     voxel.TSDF,
		Resolution:               voxel.SingleRes,
		Res:                      0.1,
		BlockEdge:                8,
		MapSide:                  64,
		LogOddMin:                -5.5,
		LogOddMax:                5.5,
		MaxWeight:                100,
		TruncationBoundaryFactor: 8,
	}
	m, err := NewMap(cfg, logging.NewTestLogger(t), 2)
	test.That(t, err, test.ShouldBeNil)

	model, err := sensor.NewPinholeCamera(sensor.PinholeCameraIntrinsics{
		Width: 4, Height: 4, Fx: 4, Fy: 4, Ppx: 2, Ppy: 2,
	}, nil, 0.1, 5.0)
	test.That(t, err, test.ShouldBeNil)

	depth := sensor.NewDepthImage(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			depth.Set(x, y, 1.0)
		}
	}

	test.That(t, m.Frame(context.Background(), model, spatial.NewZeroPose(), depth, 0), test.ShouldBeNil)
	test.That(t, m.Frame(context.Background(), model, spatial.NewZeroPose(), depth, 1), test.ShouldBeNil)
	test.That(t, m.frame, test.ShouldEqual, uint64(2))
}

func TestFrameLogsAllocateAndCompletionAtDebugLevel(t *testing.T) {
	cfg := voxel.Config{
		Kind:                     voxel.TSDF,
		Resolution:               voxel.SingleRes,
		Res:                      0.1,
		BlockEdge:                8,
		MapSide:                  64,
		LogOddMin:                -5.5,
		LogOddMax:                5.5,
		MaxWeight:                100,
		TruncationBoundaryFactor: 8,
	}
	logger, observed := logging.NewObservedTestLogger(t)
	m, err := NewMap(cfg, logger, 2)
	test.That(t, err, test.ShouldBeNil)

	model, err := sensor.NewPinholeCamera(sensor.PinholeCameraIntrinsics{
		Width: 4, Height: 4, Fx: 4, Fy: 4, Ppx: 2, Ppy: 2,
	}, nil, 0.1, 5.0)
	test.That(t, err, test.ShouldBeNil)

	depth := sensor.NewDepthImage(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			depth.Set(x, y, 1.0)
		}
	}

	test.That(t, m.Frame(context.Background(), model, spatial.NewZeroPose(), depth, 0), test.ShouldBeNil)

	var sawAllocate, sawComplete bool
	for _, entry := range observed.All() {
		if strings.Contains(entry.Message, "allocate touched") {
			sawAllocate = true
		}
		if strings.Contains(entry.Message, "complete") {
			sawComplete = true
		}
	}
	test.That(t, sawAllocate, test.ShouldBeTrue)
	test.That(t, sawComplete, test.ShouldBeTrue)
}

func TestFrameIntegratesOccupancyDepthImage(t *testing.T) {
	cfg := voxel.Config{
		Kind:                     voxel.Occupancy,
		Resolution:               voxel.MultiRes,
		Res:                      0.1,
		BlockEdge:                8,
		MapSide:                  16,
		LogOddMin:                -5.5,
		LogOddMax:                5.5,
		MaxWeight:                100,
		TruncationBoundaryFactor: 8,
		TauMin:                   0.06,
		TauMax:                   0.16,
		SigmaMin:                 0.02,
		SigmaMax:                 0.05,
		FsIntegrScale:            1,
		MinOccupancyThreshold:    -0.2,
	}
	m, err := NewMap(cfg, logging.NewTestLogger(t), 2)
	test.That(t, err, test.ShouldBeNil)

	model, err := sensor.NewPinholeCamera(sensor.PinholeCameraIntrinsics{
		Width: 8, Height: 8, Fx: 8, Fy: 8, Ppx: 4, Ppy: 4,
	}, nil, 0.1, 2.0)
	test.That(t, err, test.ShouldBeNil)

	depth := sensor.NewDepthImage(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			depth.Set(x, y, 0.5)
		}
	}

	sensorPose := spatial.NewPoseFromPoint(r3.Vector{X: 0, Y: 0, Z: -0.5})
	err = m.Frame(context.Background(), model, sensorPose, depth, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(m.Tree().Blocks()) > 0, test.ShouldBeTrue)
}
