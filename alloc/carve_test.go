package alloc

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/volumap/logging"
	"go.viam.com/volumap/octree"
	"go.viam.com/volumap/sensor"
	"go.viam.com/volumap/spatial"
	"go.viam.com/volumap/voxel"
)

// carveTestTree returns a one-level tree (root's children are already
// blocks), so CarveVolume's descent bottoms out after a single recursion.
func carveTestTree(t *testing.T) *octree.Tree {
	t.Helper()
	cfg := voxel.Config{
		Kind:                     voxel.Occupancy,
		Resolution:               voxel.SingleRes,
		Res:                      0.1,
		BlockEdge:                4,
		MapSide:                  8,
		LogOddMin:                -5.5,
		LogOddMax:                5.5,
		MaxWeight:                100,
		TruncationBoundaryFactor: 2,
	}
	tree, err := octree.NewTree(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return tree
}

func TestCarveVolumeMarksBlocksSpanningTheSurfaceBand(t *testing.T) {
	tree := carveTestTree(t)
	cam, err := sensor.NewPinholeCamera(
		sensor.PinholeCameraIntrinsics{Width: 8, Height: 8, Fx: 8, Fy: 8, Ppx: 4, Ppy: 4},
		nil, 0.1, 2.0,
	)
	test.That(t, err, test.ShouldBeNil)

	depth := sensor.NewDepthImage(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			depth.Set(x, y, 1.0)
		}
	}

	sensorPose := spatial.NewPoseFromPoint(r3.Vector{X: 0, Y: 0, Z: -1})
	cam.SetFrame(sensorPose, depth, nil)
	res, err := CarveVolume(tree, cam, sensorPose, depth, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(res.UpdateBlocks) > 0, test.ShouldBeTrue)

	for _, r := range res.UpdateBlocks {
		test.That(t, r.IsBlock(), test.ShouldBeTrue)
		_, ok := res.Variance[r]
		test.That(t, ok, test.ShouldBeTrue)
		_, ok = res.ProjectsInside[r]
		test.That(t, ok, test.ShouldBeTrue)
	}
}

func TestCarveVolumeSkipsOctantsOutsideTheFrustum(t *testing.T) {
	tree := carveTestTree(t)
	cam, err := sensor.NewPinholeCamera(
		sensor.PinholeCameraIntrinsics{Width: 8, Height: 8, Fx: 8, Fy: 8, Ppx: 4, Ppy: 4},
		nil, 0.1, 2.0,
	)
	test.That(t, err, test.ShouldBeNil)

	depth := sensor.NewDepthImage(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			depth.Set(x, y, 1.0)
		}
	}

	// Sensor sits 100 units along +z and faces +z, away from the map: the
	// root's bounding sphere falls entirely nearer than the near plane.
	sensorPose := spatial.NewPoseFromPoint(r3.Vector{X: 0, Y: 0, Z: 100})
	cam.SetFrame(sensorPose, depth, nil)
	res, err := CarveVolume(tree, cam, sensorPose, depth, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(res.UpdateBlocks), test.ShouldEqual, 0)
	test.That(t, len(res.FreeNodes), test.ShouldEqual, 0)
}
