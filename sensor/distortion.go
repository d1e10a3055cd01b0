package sensor

// DistortionType names a lens distortion model, kept from
// rimage/transform/distorter.go's DistortionType string-enum pattern.
type DistortionType string

// BrownConradyDistortionType is for simple lenses easily modeled as a
// pinhole camera.
const BrownConradyDistortionType = DistortionType("brown_conrady")

// Distorter maps undistorted normalized image coordinates to distorted
// ones. Grounded on rimage/transform/distorter.go's Distorter interface,
// trimmed to the one method PinholeCamera calls.
type Distorter interface {
	ModelType() DistortionType
	Transform(x, y float64) (float64, float64)
}

// BrownConrady is the standard radial/tangential lens distortion model.
// Grounded on rimage/transform/brown_conrady.go; the forward Transform is
// kept as-is, and InverseTransform reuses that file's Newton-Raphson
// iteration to invert it (needed by BackProject, which starts from a
// distorted pixel and must recover the undistorted ray direction).
type BrownConrady struct {
	RadialK1, RadialK2, RadialK3 float64
	TangentialP1, TangentialP2   float64
}

func (bc *BrownConrady) ModelType() DistortionType { return BrownConradyDistortionType }

// Transform applies forward Brown-Conrady distortion to a normalized
// undistorted point (xu, yu), returning the distorted point (xd, yd).
func (bc *BrownConrady) Transform(xu, yu float64) (float64, float64) {
	if bc == nil {
		return xu, yu
	}
	r2 := xu*xu + yu*yu
	r4 := r2 * r2
	r6 := r4 * r2
	radial := 1 + bc.RadialK1*r2 + bc.RadialK2*r4 + bc.RadialK3*r6
	xd := xu*radial + 2*bc.TangentialP1*xu*yu + bc.TangentialP2*(r2+2*xu*xu)
	yd := yu*radial + 2*bc.TangentialP2*xu*yu + bc.TangentialP1*(r2+2*yu*yu)
	return xd, yd
}

// InverseTransform recovers the undistorted point that forward-distorts to
// (xd, yd), via Newton-Raphson iteration on Transform's Jacobian.
func (bc *BrownConrady) InverseTransform(xd, yd float64) (float64, float64) {
	if bc == nil {
		return xd, yd
	}
	xu, yu := xd, yd
	const maxIterations = 20
	const tolerance = 1e-10
	for i := 0; i < maxIterations; i++ {
		xdEst, ydEst := bc.Transform(xu, yu)
		errX, errY := xdEst-xd, ydEst-yd
		if errX*errX+errY*errY < tolerance*tolerance {
			break
		}
		r2 := xu*xu + yu*yu
		dRadDxu := 2 * xu * (bc.RadialK1 + 2*bc.RadialK2*r2 + 3*bc.RadialK3*r2*r2)
		dRadDyu := 2 * yu * (bc.RadialK1 + 2*bc.RadialK2*r2 + 3*bc.RadialK3*r2*r2)
		radial := 1 + bc.RadialK1*r2 + bc.RadialK2*r2*r2 + bc.RadialK3*r2*r2*r2
		dxdDxu := radial + xu*dRadDxu + 2*bc.TangentialP1*yu + bc.TangentialP2*6*xu
		dxdDyu := xu*dRadDyu + 2*bc.TangentialP1*xu + bc.TangentialP2*2*yu
		dydDxu := yu*dRadDxu + 2*bc.TangentialP2*yu + bc.TangentialP1*2*xu
		dydDyu := radial + yu*dRadDyu + 2*bc.TangentialP2*xu + bc.TangentialP1*6*yu
		det := dxdDxu*dydDyu - dxdDyu*dydDxu
		if det == 0 {
			break
		}
		xu -= (dydDyu*errX - dxdDyu*errY) / det
		yu -= (-dydDxu*errX + dxdDxu*errY) / det
	}
	return xu, yu
}
