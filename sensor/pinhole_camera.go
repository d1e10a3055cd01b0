package sensor

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/volumap/spatial"
)

// PinholeCameraIntrinsics holds the parameters needed to project a 3D
// scene onto a 2D image plane. Kept verbatim from
// rimage/transform/pinhole_camera_parameters.go's field names and
// PixelToPoint/PointToPixel math; the RGBD<->PointCloud conversions and
// JSON-file loader on the teacher's version are dropped (no
// SPEC_FULL.md consumer — this module never round-trips through an
// image.Image/pointcloud.PointCloud, only through DepthImage/ColorImage).
type PinholeCameraIntrinsics struct {
	Width, Height int
	Fx, Fy        float64
	Ppx, Ppy      float64
}

// CheckValid checks the intrinsics for the obviously-broken configurations
// the teacher's CheckValid rejected.
func (p PinholeCameraIntrinsics) CheckValid() error {
	if p.Width == 0 || p.Height == 0 {
		return errors.Errorf("invalid image size (%d, %d)", p.Width, p.Height)
	}
	if p.Fx <= 0 || p.Fy <= 0 {
		return errors.Errorf("invalid focal length (%v, %v)", p.Fx, p.Fy)
	}
	return nil
}

// CameraMatrix returns the 3x3 intrinsic camera matrix
// [[fx 0 ppx], [0 fy ppy], [0 0 1]].
func (p PinholeCameraIntrinsics) CameraMatrix() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	m.Set(0, 0, p.Fx)
	m.Set(1, 1, p.Fy)
	m.Set(0, 2, p.Ppx)
	m.Set(1, 2, p.Ppy)
	m.Set(2, 2, 1)
	return m
}

// PixelToPoint back-projects a pixel plus depth to a sensor-frame point.
// This is CameraMatrix's inverse in closed form rather than a
// mat.Dense.Inverse call: it runs once per valid depth pixel in
// allocatePerPixel's per-frame loop, the hottest call site in the
// pipeline, so it skips the matrix allocation PointToPixel can afford.
func (p PinholeCameraIntrinsics) PixelToPoint(u, v, depth float64) (x, y, z float64) {
	x = (u - p.Ppx) / p.Fx * depth
	y = (v - p.Ppy) / p.Fy * depth
	return x, y, depth
}

// PointToPixel projects a sensor-frame point to a pixel by the homogeneous
// matrix multiply K*[x,y,z]^T, dividing through by the third (depth) row;
// z <= 0 is signalled by returning ok=false, since a point behind the
// camera has no pixel. This is the camera matrix's one real consumer: the
// per-voxel projection fuse.UpdateBlockTSDF/UpdateBlockOccupancy drive
// through ProjectToPixelValue -> Project -> here.
func (p PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (u, v float64, ok bool) {
	if z <= 0 {
		return 0, 0, false
	}
	point := mat.NewVecDense(3, []float64{x, y, z})
	pixel := mat.NewVecDense(3, nil)
	pixel.MulVec(p.CameraMatrix(), point)
	return pixel.AtVec(0) / pixel.AtVec(2), pixel.AtVec(1) / pixel.AtVec(2), true
}

// PinholeCamera is a Model for a fixed-frame depth camera (spec.md §6),
// grounded on rimage/transform's PinholeCameraModel wrapping
// PinholeCameraIntrinsics plus a Distortion field.
type PinholeCamera struct {
	Intrinsics PinholeCameraIntrinsics
	Distortion *BrownConrady

	near, far float64
	pose      spatial.Pose // T_WS: this camera's current world pose
	depth     *DepthImage
	color     *ColorImage
}

// NewPinholeCamera constructs a PinholeCamera with the given intrinsics and
// valid depth range.
func NewPinholeCamera(intrinsics PinholeCameraIntrinsics, distortion *BrownConrady, near, far float64) (*PinholeCamera, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return &PinholeCamera{Intrinsics: intrinsics, Distortion: distortion, near: near, far: far}, nil
}

// SetFrame attaches this frame's world pose and depth/color images, called
// once per integration frame before the allocator or ray-caster consult
// this model.
func (c *PinholeCamera) SetFrame(pose spatial.Pose, depth *DepthImage, color *ColorImage) {
	c.pose, c.depth, c.color = pose, depth, color
}

// FramePrimer is implemented by Models whose per-frame pose and images can
// be attached in one call before the allocator or ray-caster consult them
// (spec.md §4.1/§4.2's frustum and surface-band checks both read a Model's
// own pose, so the orchestrator must prime it first). PinholeCamera
// implements it; RotatingLidar's per-azimuth-bin SetSweep has no single-pose
// equivalent, so a LiDAR integration path must prime it directly rather than
// through this interface.
type FramePrimer interface {
	SetFrame(pose spatial.Pose, depth *DepthImage, color *ColorImage)
}

// Pose returns the camera's current world pose.
func (c *PinholeCamera) Pose() spatial.Pose { return c.pose }

func (c *PinholeCamera) Project(p r3.Vector) (u, v int, depth float64, ok bool) {
	fu, fv, projOK := c.Intrinsics.PointToPixel(p.X, p.Y, p.Z)
	if !projOK {
		return 0, 0, 0, false
	}
	if c.Distortion != nil {
		xu, yu := (fu-c.Intrinsics.Ppx)/c.Intrinsics.Fx, (fv-c.Intrinsics.Ppy)/c.Intrinsics.Fy
		xd, yd := c.Distortion.Transform(xu, yu)
		fu = xd*c.Intrinsics.Fx + c.Intrinsics.Ppx
		fv = yd*c.Intrinsics.Fy + c.Intrinsics.Ppy
	}
	u, v = int(math.Round(fu)), int(math.Round(fv))
	if u < 0 || u >= c.Intrinsics.Width || v < 0 || v >= c.Intrinsics.Height {
		return 0, 0, 0, false
	}
	return u, v, p.Z, true
}

func (c *PinholeCamera) BackProject(u, v int, depth float64) r3.Vector {
	fu, fv := float64(u), float64(v)
	if c.Distortion != nil {
		xd, yd := (fu-c.Intrinsics.Ppx)/c.Intrinsics.Fx, (fv-c.Intrinsics.Ppy)/c.Intrinsics.Fy
		xu, yu := c.Distortion.InverseTransform(xd, yd)
		fu = xu*c.Intrinsics.Fx + c.Intrinsics.Ppx
		fv = yu*c.Intrinsics.Fy + c.Intrinsics.Ppy
	}
	x, y, z := c.Intrinsics.PixelToPoint(fu, fv, depth)
	return r3.Vector{X: x, Y: y, Z: z}
}

func (c *PinholeCamera) MeasurementFromPoint(u, v int, depth float64) Measurement {
	p := c.BackProject(u, v, depth)
	m := Measurement{Point: p}
	if c.color != nil && u >= 0 && u < c.color.Width() && v >= 0 && v < c.color.Height() {
		r, g, b := c.color.At(u, v)
		m.HasColor, m.R, m.G, m.B = true, r, g, b
	}
	return m
}

func (c *PinholeCamera) NearDist() float64 { return c.near }
func (c *PinholeCamera) FarDist() float64  { return c.far }

// ComputeIntegrationScale linearly maps depth in [near, far] to a scale in
// [0, maxScale]: near readings use the finest scale, far readings the
// coarsest (spec.md §4.3).
func (c *PinholeCamera) ComputeIntegrationScale(depth float64, maxScale int) int {
	if maxScale <= 0 || c.far <= c.near {
		return 0
	}
	frac := (depth - c.near) / (c.far - c.near)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return int(frac * float64(maxScale))
}

func (c *PinholeCamera) SphereInFrustum(center r3.Vector, radius float64) bool {
	local := c.pose.Invert().Transform(center)
	if local.Z+radius < c.near || local.Z-radius > c.far {
		return false
	}
	// Half-angles of the horizontal/vertical field of view, expanded by
	// the angle the sphere's radius subtends at this depth.
	halfW := float64(c.Intrinsics.Width) / 2 / c.Intrinsics.Fx
	halfH := float64(c.Intrinsics.Height) / 2 / c.Intrinsics.Fy
	if local.Z <= 0 {
		return radius >= -local.Z
	}
	angularSlack := radius / local.Z
	if math.Abs(local.X/local.Z) > halfW+angularSlack {
		return false
	}
	if math.Abs(local.Y/local.Z) > halfH+angularSlack {
		return false
	}
	return true
}

func (c *PinholeCamera) ProjectToPixelValue(worldPoint r3.Vector) (float64, bool) {
	if c.depth == nil {
		return 0, false
	}
	local := c.pose.Invert().Transform(worldPoint)
	u, v, depth, ok := c.Project(local)
	if !ok {
		return 0, false
	}
	measured := c.depth.At(u, v)
	if measured <= 0 {
		return 0, false
	}
	return depth - measured, true
}
